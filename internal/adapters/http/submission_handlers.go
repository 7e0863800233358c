package httpadapter

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

func (rt *Router) createSubmission(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateSubmissionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Submissions.Create(r.Context(), rt.meta(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordSubmissionCreated(metricsService)
	writeData(w, http.StatusCreated, sub)
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	detail, err := rt.svc.Submissions.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (rt *Router) updateSubmission(w http.ResponseWriter, r *http.Request) {
	var patch domain.SubmissionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Submissions.Update(r.Context(), rt.meta(r), r.PathValue("slug"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sub)
}

func (rt *Router) submitSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.svc.Submissions.Submit(r.Context(), rt.meta(r), r.PathValue("slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordStatusChange(metricsService, string(sub.Status))
	writeData(w, http.StatusOK, sub)
}

// uploadDocument takes the file from the multipart field "file" and the metadata from
// the query string: category, classification, description.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	maxSize := rt.cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = domain.DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemoryHint); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.Failf(domain.ErrInvalidInput, "File too large (max %d MB)", maxSize/(1024*1024)))
			return
		}
		writeError(w, r, domain.Fail(domain.ErrInvalidInput, "Invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.Fail(domain.ErrInvalidInput, "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	q := r.URL.Query()
	category, err := domain.ParseDocumentCategory(q.Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	classification, err := domain.ParseDocumentClassification(q.Get("classification"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := rt.svc.Documents.Upload(r.Context(), rt.meta(r), domain.UploadInput{
		Slug:           r.PathValue("slug"),
		Category:       category,
		Classification: classification,
		Description:    optionalParam(q.Get("description")),
		Filename:       header.Filename,
		MimeType:       mediaType(header.Header.Get("Content-Type")),
		Size:           header.Size,
		Body:           file,
		UploaderToken:  sessionToken(r, uploaderSessionCookie),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordDocumentAdded(metricsService, string(doc.Category), "file", header.Size)
	writeData(w, http.StatusCreated, doc)
}

type formalLawRequest struct {
	ExternalURL    string  `json:"external_url"`
	ExternalTitle  *string `json:"external_title"`
	Description    *string `json:"description"`
	Classification *string `json:"classification"`
}

func (rt *Router) addFormalLaw(w http.ResponseWriter, r *http.Request) {
	var req formalLawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := domain.FormalLawInput{
		Slug:          r.PathValue("slug"),
		ExternalURL:   req.ExternalURL,
		ExternalTitle: req.ExternalTitle,
		Description:   req.Description,
		UploaderToken: sessionToken(r, uploaderSessionCookie),
	}
	if req.Classification != nil && strings.TrimSpace(*req.Classification) != "" {
		c, err := domain.ParseDocumentClassification(*req.Classification)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.Classification = &c
	}

	doc, err := rt.svc.Documents.AddFormalLaw(r.Context(), rt.meta(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordDocumentAdded(metricsService, string(doc.Category), "link", 0)
	writeData(w, http.StatusCreated, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := rt.svc.Documents.Delete(r.Context(), rt.meta(r), r.PathValue("slug"), r.PathValue("id"), sessionToken(r, uploaderSessionCookie))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

func (rt *Router) availableSlots(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slots, err := rt.svc.Calendar.Available(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, slots)
}

type bookSlotRequest struct {
	SlotID string `json:"slot_id"`
}

func (rt *Router) bookSlot(w http.ResponseWriter, r *http.Request) {
	var req bookSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := rt.svc.Calendar.Book(r.Context(), rt.meta(r), r.PathValue("slug"), req.SlotID)
	if err != nil {
		result := "error"
		if domain.IsKind(err, domain.ErrConflict) {
			result = "conflict"
		}
		rt.httpMetrics.RecordBooking(metricsService, result)
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordBooking(metricsService, "booked")
	writeData(w, http.StatusOK, slot)
}

func (rt *Router) cancelBooking(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Calendar.Cancel(r.Context(), rt.meta(r), r.PathValue("slug")); err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordBooking(metricsService, "cancelled")
	writeData(w, http.StatusOK, map[string]string{"message": "Booking cancelled"})
}

func timeWindow(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := timeParam(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := timeParam(r, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.Failf(domain.ErrInvalidInput, "Invalid '%s' timestamp (expected RFC 3339)", name)
	}
	t = t.UTC()
	return &t, nil
}

func optionalParam(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// mediaType drops parameters such as charset from a declared content type.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(contentType)
	}
	return mt
}
