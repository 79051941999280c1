// Package generator renders the downloadable petition documents: cover
// letters, recommendation letters and mock evidence materials.
package generator

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"visamate-backend/models"
)

var (
	ErrUnknownKind   = errors.New("unknown document kind")
	ErrMissingFields = errors.New("missing required fields")
)

// Input is the form data and uploaded-file context for one document
type Input struct {
	Fields map[string]string
	// Exhibits are filenames of the applicant's uploaded evidence
	Exhibits []string
	Now      time.Time
}

// Document is a rendered text document ready for download
type Document struct {
	Kind     models.DocumentKind `json:"kind"`
	Filename string              `json:"filename"`
	Content  string              `json:"content"`
}

type spec struct {
	tmpl     *template.Template
	required []string
	// filename is built from these fields, joined with underscores
	nameFrom []string
}

var specs = map[models.DocumentKind]spec{
	models.DocumentCoverLetter: {
		tmpl:     newTemplate("cover_letter", coverLetterTemplate),
		required: []string{"applicant_name", "visa_category", "field"},
		nameFrom: []string{"cover_letter", "applicant_name"},
	},
	models.DocumentRecommendationLetter: {
		tmpl:     newTemplate("recommendation_letter", recommendationTemplate),
		required: []string{"recommender_name", "applicant_name", "field"},
		nameFrom: []string{"recommendation", "recommender_name"},
	},
	models.DocumentMockMaterials: {
		tmpl:     newTemplate("mock_materials", mockMaterialsTemplate),
		required: []string{"applicant_name", "material_type"},
		nameFrom: []string{"material_type", "applicant_name"},
	},
}

func newTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).
		Option("missingkey=zero").
		Funcs(template.FuncMap{"add1": func(i int) int { return i + 1 }}).
		Parse(text))
}

// MockMaterialTypes lists the supported material_type values
var MockMaterialTypes = []string{"press_article", "award_certificate", "membership_letter"}

// RequiredFields returns the fields a kind cannot be rendered without
func RequiredFields(kind models.DocumentKind) []string {
	return append([]string(nil), specs[kind].required...)
}

// Render interpolates the input into the template for kind
func Render(kind models.DocumentKind, in Input) (*Document, error) {
	sp, ok := specs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	fields := make(map[string]string, len(in.Fields)+1)
	for k, v := range in.Fields {
		fields[k] = strings.TrimSpace(v)
	}

	var missing []string
	for _, name := range sp.required {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	if kind == models.DocumentMockMaterials && !validMaterialType(fields["material_type"]) {
		return nil, fmt.Errorf("%w: material_type must be one of %s",
			ErrMissingFields, strings.Join(MockMaterialTypes, ", "))
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if fields["date"] == "" {
		fields["date"] = now.Format("January 2, 2006")
	}

	var buf bytes.Buffer
	data := struct {
		F        map[string]string
		Exhibits []string
	}{F: fields, Exhibits: in.Exhibits}
	if err := sp.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}

	return &Document{
		Kind:     kind,
		Filename: filename(sp.nameFrom, fields),
		Content:  buf.String(),
	}, nil
}

func validMaterialType(t string) bool {
	for _, m := range MockMaterialTypes {
		if m == t {
			return true
		}
	}
	return false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func filename(parts []string, fields map[string]string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := p
		if f, ok := fields[p]; ok && f != "" {
			v = f
		}
		v = strings.Trim(unsafeChars.ReplaceAllString(v, "_"), "_")
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, "_") + ".txt"
}
