package models

import "github.com/google/uuid"

// ChecklistItem is one document the applicant should gather
type ChecklistItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Required  bool       `json:"required"`
	Completed bool       `json:"completed"`
	FileID    *uuid.UUID `json:"file_id,omitempty"`
}

// ChecklistCategory groups related checklist items
type ChecklistCategory struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Items []ChecklistItem `json:"items"`
}

// Checklist is the full set of categories generated for a visa category
type Checklist struct {
	VisaCategory VisaCategory        `json:"visa_category"`
	Categories   []ChecklistCategory `json:"categories"`
}

// Item returns a pointer to the item with the given id, or nil
func (c *Checklist) Item(id string) *ChecklistItem {
	for i := range c.Categories {
		for j := range c.Categories[i].Items {
			if c.Categories[i].Items[j].ID == id {
				return &c.Categories[i].Items[j]
			}
		}
	}
	return nil
}

// Progress counts completed items and completed required items
func (c *Checklist) Progress() (completed, requiredDone, requiredTotal int) {
	for _, cat := range c.Categories {
		for _, it := range cat.Items {
			if it.Completed {
				completed++
			}
			if it.Required {
				requiredTotal++
				if it.Completed {
					requiredDone++
				}
			}
		}
	}
	return completed, requiredDone, requiredTotal
}

// ChecklistItemUpdate is a partial update for a single item
type ChecklistItemUpdate struct {
	Completed *bool      `json:"completed,omitempty"`
	FileID    *uuid.UUID `json:"file_id,omitempty"`
}
