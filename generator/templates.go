package generator

const coverLetterTemplate = `{{.F.date}}

U.S. Citizenship and Immigration Services

RE: {{.F.visa_category}} Petition on behalf of {{.F.applicant_name}}

Dear Officer,

Please accept this letter in support of the {{.F.visa_category}} petition filed on behalf of {{.F.applicant_name}}, who has demonstrated sustained achievement in the field of {{.F.field}}.
{{- if .F.employer}}

{{.F.applicant_name}} is currently with {{.F.employer}}.
{{- end}}
{{- if .F.achievements}}

Summary of achievements:
{{.F.achievements}}
{{- end}}
{{- if .Exhibits}}

The following exhibits are enclosed:
{{- range $i, $e := .Exhibits}}
  Exhibit {{add1 $i}}: {{$e}}
{{- end}}
{{- end}}

Based on the evidence presented, we respectfully request that the petition be approved.

Sincerely,

{{if .F.attorney_name}}{{.F.attorney_name}}{{else}}{{.F.applicant_name}}{{end}}
`

const recommendationTemplate = `{{.F.date}}

To Whom It May Concern,

My name is {{.F.recommender_name}}{{if .F.recommender_title}}, {{.F.recommender_title}}{{end}}{{if .F.organization}} at {{.F.organization}}{{end}}. I am writing in strong support of {{.F.applicant_name}}'s petition.
{{- if .F.relationship}}

I know {{.F.applicant_name}} through {{.F.relationship}}.
{{- end}}

{{.F.applicant_name}} has made contributions of major significance to the field of {{.F.field}}.
{{- if .F.contributions}}

{{.F.contributions}}
{{- end}}

In my professional opinion, {{.F.applicant_name}} is among the small percentage of individuals who have risen to the very top of the field.

Sincerely,

{{.F.recommender_name}}
{{- if .F.recommender_title}}
{{.F.recommender_title}}
{{- end}}
{{- if .F.organization}}
{{.F.organization}}
{{- end}}
`

const mockMaterialsTemplate = `SAMPLE EVIDENCE - FOR PREPARATION ONLY - NOT FOR FILING

{{if eq .F.material_type "press_article" -}}
{{if .F.publication}}{{.F.publication}}{{else}}Industry Review{{end}} | {{.F.date}}

{{if .F.title}}{{.F.title}}{{else}}{{.F.applicant_name}} Is Redefining {{if .F.field}}{{.F.field}}{{else}}the Field{{end}}{{end}}

{{.F.applicant_name}} has drawn wide attention for work in {{if .F.field}}{{.F.field}}{{else}}the field{{end}}. Peers describe the results as a turning point.
{{- else if eq .F.material_type "award_certificate" -}}
CERTIFICATE OF ACHIEVEMENT

Presented to {{.F.applicant_name}}
{{- if .F.title}}
for {{.F.title}}
{{- end}}
{{- if .F.organization}}
by {{.F.organization}}
{{- end}}
on {{.F.date}}
{{- else -}}
{{.F.date}}

Dear {{.F.applicant_name}},

We are pleased to confirm your membership in {{if .F.organization}}{{.F.organization}}{{else}}our association{{end}}. Membership is limited to those judged by recognized experts to have achieved outstanding results{{if .F.field}} in {{.F.field}}{{end}}.
{{- end}}
`
