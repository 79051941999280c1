package service

import "visamate-backend/models"

type itemTemplate struct {
	id       string
	name     string
	required bool
}

type categoryTemplate struct {
	id    string
	name  string
	items []itemTemplate
}

var identityCategory = categoryTemplate{"identity", "Identity & Status", []itemTemplate{
	{"passport", "Passport biographic page", true},
	{"photos", "Passport-style photographs", true},
	{"status-history", "Prior visas and I-94 records", false},
}}

var petitionFormsI140 = categoryTemplate{"forms", "Forms & Fees", []itemTemplate{
	{"i140", "Form I-140, Immigrant Petition for Alien Worker", true},
	{"filing-fee", "Filing fee payment", true},
	{"g1145", "Form G-1145, e-Notification", false},
}}

var petitionFormsI129 = categoryTemplate{"forms", "Forms & Fees", []itemTemplate{
	{"i129", "Form I-129, Petition for a Nonimmigrant Worker", true},
	{"filing-fee", "Filing fee payment", true},
	{"g1145", "Form G-1145, e-Notification", false},
}}

var recommendationLetters = categoryTemplate{"letters", "Letters of Support", []itemTemplate{
	{"recommendation-independent", "Recommendation letters from independent experts", true},
	{"recommendation-dependent", "Recommendation letters from collaborators", false},
	{"expert-opinion", "Expert opinion letter", false},
}}

var checklistTemplates = map[models.VisaCategory][]categoryTemplate{
	models.VisaEB1A: {
		identityCategory,
		{"evidence", "Extraordinary Ability Evidence", []itemTemplate{
			{"awards", "Nationally or internationally recognized awards", true},
			{"memberships", "Membership in associations requiring outstanding achievement", false},
			{"media", "Published material about you", false},
			{"judging", "Judging the work of others", false},
			{"contributions", "Original contributions of major significance", true},
			{"articles", "Authorship of scholarly articles", false},
			{"exhibitions", "Display of work at exhibitions", false},
			{"leading-role", "Leading or critical role for distinguished organizations", false},
			{"salary", "High salary or remuneration", false},
			{"commercial-success", "Commercial success in the performing arts", false},
		}},
		recommendationLetters,
		{"cv", "Curriculum Vitae", []itemTemplate{
			{"resume", "Detailed CV", true},
		}},
		petitionFormsI140,
	},
	models.VisaEB1B: {
		identityCategory,
		{"employment", "Employment", []itemTemplate{
			{"job-offer", "Permanent research position offer letter", true},
			{"experience", "Evidence of three years of research or teaching experience", true},
		}},
		{"evidence", "International Recognition", []itemTemplate{
			{"awards", "Major prizes or awards for outstanding achievement", false},
			{"memberships", "Membership in associations requiring outstanding achievement", false},
			{"media", "Published material about your work", false},
			{"judging", "Judging the work of others", false},
			{"contributions", "Original scientific or scholarly research contributions", true},
			{"articles", "Authorship of scholarly books or articles", true},
		}},
		recommendationLetters,
		petitionFormsI140,
	},
	models.VisaEB2NIW: {
		identityCategory,
		{"qualification", "Advanced Degree or Exceptional Ability", []itemTemplate{
			{"degree", "Advanced degree diploma", true},
			{"transcripts", "Academic transcripts", true},
			{"credential-evaluation", "Foreign credential evaluation", false},
		}},
		{"dhanasar", "National Interest Waiver (Dhanasar)", []itemTemplate{
			{"merit", "Substantial merit and national importance of the endeavor", true},
			{"positioned", "Evidence you are well positioned to advance the endeavor", true},
			{"balance", "Why waiving the job offer benefits the United States", true},
			{"business-plan", "Business or research plan", false},
		}},
		recommendationLetters,
		petitionFormsI140,
	},
	models.VisaO1A: {
		identityCategory,
		{"evidence", "Extraordinary Ability Evidence", []itemTemplate{
			{"awards", "Nationally or internationally recognized awards", false},
			{"memberships", "Membership in associations requiring outstanding achievement", false},
			{"media", "Published material about you", false},
			{"judging", "Judging the work of others", false},
			{"contributions", "Original contributions of major significance", true},
			{"articles", "Authorship of scholarly articles", false},
			{"critical-employment", "Critical employment for distinguished organizations", false},
			{"salary", "High salary or remuneration", false},
		}},
		{"engagement", "U.S. Engagement", []itemTemplate{
			{"contract", "Employment contract or deal memo", true},
			{"itinerary", "Itinerary of events", false},
			{"advisory-opinion", "Advisory opinion from a peer group", true},
		}},
		recommendationLetters,
		petitionFormsI129,
	},
	models.VisaO1B: {
		identityCategory,
		{"evidence", "Extraordinary Achievement Evidence", []itemTemplate{
			{"nominations", "Nominations or awards for significant national or international prizes", false},
			{"lead-roles", "Lead or starring roles in distinguished productions", true},
			{"reviews", "Critical reviews and published material", false},
			{"commercial-success", "Record of major commercial or critical success", false},
			{"recognition", "Recognition from organizations, critics or experts", false},
			{"salary", "High salary compared to others in the field", false},
		}},
		{"engagement", "U.S. Engagement", []itemTemplate{
			{"contract", "Employment contract or deal memo", true},
			{"itinerary", "Itinerary of performances", true},
			{"advisory-opinion", "Advisory opinion from a union or peer group", true},
		}},
		recommendationLetters,
		petitionFormsI129,
	},
	models.VisaH1B: {
		identityCategory,
		{"employment", "Employment", []itemTemplate{
			{"lca", "Certified Labor Condition Application", true},
			{"job-offer", "Job offer letter with duties and wage", true},
			{"employer-docs", "Employer support letter", false},
		}},
		{"qualification", "Specialty Occupation Qualification", []itemTemplate{
			{"degree", "Bachelor's degree or higher diploma", true},
			{"transcripts", "Academic transcripts", false},
			{"credential-evaluation", "Foreign credential evaluation", false},
			{"resume", "Resume", false},
		}},
		petitionFormsI129,
	},
}

// GenerateChecklist builds a fresh checklist for a visa category with nothing completed
func GenerateChecklist(visa models.VisaCategory) (*models.Checklist, error) {
	tmpl, ok := checklistTemplates[visa]
	if !ok {
		return nil, ErrInvalidVisaCategory
	}

	checklist := &models.Checklist{
		VisaCategory: visa,
		Categories:   make([]models.ChecklistCategory, 0, len(tmpl)),
	}
	for _, ct := range tmpl {
		cat := models.ChecklistCategory{
			ID:    ct.id,
			Name:  ct.name,
			Items: make([]models.ChecklistItem, 0, len(ct.items)),
		}
		for _, it := range ct.items {
			cat.Items = append(cat.Items, models.ChecklistItem{
				ID:       ct.id + "-" + it.id,
				Name:     it.name,
				Required: it.required,
			})
		}
		checklist.Categories = append(checklist.Categories, cat)
	}
	return checklist, nil
}

// ComputeRFERisk estimates RFE risk from required-item progress: 85 with
// nothing done, falling linearly to a floor of 5.
func ComputeRFERisk(requiredDone, requiredTotal int) int {
	if requiredTotal == 0 {
		return models.DefaultRFERisk
	}
	risk := models.DefaultRFERisk - (80*requiredDone+requiredTotal/2)/requiredTotal
	if risk < 5 {
		risk = 5
	}
	return risk
}
