package domain

import (
	"fmt"
	"slices"
	"strings"
)

const (
	maxNameLength = 255
	maxURLLength  = 2048

	DefaultMaxUploadSize int64 = 50 * 1024 * 1024
	CanonicalLawDomain         = "wetten.overheid.nl"
)

type CreateSubmissionInput struct {
	SubmitterName          string  `json:"submitter_name"`
	SubmitterEmail         *string `json:"submitter_email"`
	Organization           string  `json:"organization"`
	OrganizationDepartment *string `json:"organization_department"`
}

func ValidateCreateSubmission(in CreateSubmissionInput) error {
	if err := requiredField("submitter_name", in.SubmitterName); err != nil {
		return err
	}
	if err := requiredField("organization", in.Organization); err != nil {
		return err
	}
	if in.SubmitterEmail != nil && *in.SubmitterEmail != "" && !IsValidEmail(*in.SubmitterEmail) {
		return Fail(ErrInvalidInput, "Invalid email format")
	}
	if in.OrganizationDepartment != nil && len(*in.OrganizationDepartment) > maxNameLength {
		return tooLong("organization_department", maxNameLength)
	}
	return nil
}

// ValidateSubmissionPatch applies the create rules to the fields present in the patch.
func ValidateSubmissionPatch(p SubmissionPatch) error {
	if p.SubmitterName != nil {
		if err := requiredField("submitter_name", *p.SubmitterName); err != nil {
			return err
		}
	}
	if p.Organization != nil {
		if err := requiredField("organization", *p.Organization); err != nil {
			return err
		}
	}
	if p.SubmitterEmail != nil && *p.SubmitterEmail != "" && !IsValidEmail(*p.SubmitterEmail) {
		return Fail(ErrInvalidInput, "Invalid email format")
	}
	if p.OrganizationDepartment != nil && len(*p.OrganizationDepartment) > maxNameLength {
		return tooLong("organization_department", maxNameLength)
	}
	return nil
}

func requiredField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Failf(ErrInvalidInput, "Field '%s' is required", field)
	}
	if len(value) > maxNameLength {
		return tooLong(field, maxNameLength)
	}
	return nil
}

func tooLong(field string, max int) error {
	return Failf(ErrInvalidInput, "Field '%s' is too long (max %d characters)", field, max)
}

// IsValidEmail is a shape check: one @, non-empty local part, dotted domain.
func IsValidEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domainPart, "@") {
		return false
	}
	return local != "" && len(domainPart) > 2 && strings.Contains(domainPart, ".")
}

// ValidateExternalURL requires an http(s) URL. Non-canonical hosts are allowed; see IsCanonicalLawURL.
func ValidateExternalURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return Fail(ErrInvalidInput, "Field 'external_url' is required")
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return Fail(ErrInvalidInput, "Invalid URL format")
	}
	if len(url) > maxURLLength {
		return tooLong("external_url", maxURLLength)
	}
	return nil
}

func IsCanonicalLawURL(url, canonicalDomain string) bool {
	if canonicalDomain == "" {
		canonicalDomain = CanonicalLawDomain
	}
	return strings.Contains(url, canonicalDomain)
}

// ValidateClassificationForUpload rejects restricted material before anything is stored.
func ValidateClassificationForUpload(c DocumentClassification) error {
	if c == ClassificationRestricted {
		return Fail(ErrInvalidInput, "Restricted documents cannot be uploaded")
	}
	return nil
}

var allowedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.oasis.opendocument.text",
	"application/rtf",
	"text/plain",
	"text/markdown",
	"text/csv",
}

func IsAllowedMimeType(mimeType string) bool {
	return slices.Contains(allowedMimeTypes, mimeType)
}

// ValidateFileUpload checks declared size then declared MIME type.
func ValidateFileUpload(mimeType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if size > maxSize {
		return Failf(ErrInvalidInput, "File too large (max %d MB)", maxSize/(1024*1024))
	}
	if !IsAllowedMimeType(mimeType) {
		return Failf(ErrInvalidInput, "Invalid file type: %s", mimeType)
	}
	return nil
}

var dangerousExtensions = []string{
	".php", ".phtml", ".php3", ".php4", ".php5", ".php7", ".phps",
	".asp", ".aspx", ".jsp", ".jspx", ".cgi", ".pl",
	".py", ".pyc", ".pyo", ".rb", ".erb",
	".exe", ".bat", ".cmd", ".com", ".msi", ".dll",
	".sh", ".bash", ".zsh", ".ksh",
	".js", ".jsx", ".ts", ".tsx", ".mjs",
	".htaccess", ".htpasswd",
	".jar", ".war", ".ear", ".class",
}

// ValidateFilenameExtensions rejects executable extensions, including double extensions like x.php.pdf.
// Both the raw name and its sanitized basename are checked, since sanitizing
// can expose an extension that trailing junk hid ("x.php " stores as x.php).
func ValidateFilenameExtensions(filename string) error {
	for _, name := range []string{filename, SanitizeFilename(filename)} {
		lower := strings.ToLower(name)
		for _, ext := range dangerousExtensions {
			if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+".") {
				return Failf(ErrInvalidInput, "Invalid file type: filename contains dangerous extension: %s", ext)
			}
		}
	}
	return nil
}

// SanitizeFilename reduces an uploaded name to a safe basename.
func SanitizeFilename(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case isASCIIAlnum(r):
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, "._")
	base = strings.TrimRight(base, "_")
	if base == "" {
		return "upload"
	}
	return base
}

// StoredFilename prefixes a sanitized name with a unique id.
func StoredFilename(id, original string) string {
	return fmt.Sprintf("%s_%s", id, SanitizeFilename(original))
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
