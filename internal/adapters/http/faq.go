package httpadapter

import "net/http"

type faqItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var faqItems = []faqItem{
	{
		Question: "Levert RegelRecht kant en klare regelsets?",
		Answer: "Nee. We doen een beleidsverkenning en onderzoeksproject naar de inzetbaarheid van deze nieuwe " +
			"technologie voor het vertalen van beleid naar machine-leesbare regels.",
	},
	{
		Question: "Ik heb nog geen interne werkprocessen en wilde eigenlijk alleen beginnen bij de hoogste liggende wet",
		Answer: "We hebben meer informatie nodig om met je project aan de slag te kunnen. De onderzoeksfocus ligt " +
			"op het vertalen van uitvoeringsbeleid en werkinstructies naar machine-leesbare regels, met de formele " +
			"wetgeving als basis.",
	},
	{
		Question: "Wie is eigenaar van de regels?",
		Answer: "De casushouder (uploader) is eigenaar van de regels. De uitkomsten van de verkenning zijn een eerste " +
			"stap; voor de juridische sluitendheid van het proces blijft de casushouder verantwoordelijk.",
	},
	{
		Question: "Wat gebeurt er verder met mijn uploads?",
		Answer: "We maken een eerste aanzet van regels en plannen daarna een meeting met uw experts. Kies na het " +
			"uploaden een tijdslot om de uitkomsten te bespreken.",
	},
	{
		Question: "Welke documenten kan ik uploaden?",
		Answer: "Circulaires, uitvoeringsbeleid en werkinstructies. Voor formele wetten voegt u een link toe naar " +
			"wetten.overheid.nl. Documenten met classificatie 'restricted' worden niet geaccepteerd.",
	},
	{
		Question: "Hoe lang worden mijn gegevens bewaard?",
		Answer: "Tot 12 maanden na indiening. De vervaldatum staat bij uw inzending. Daarna worden de gegevens " +
			"verwijderd.",
	},
}

func (rt *Router) faq(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, faqItems)
}
