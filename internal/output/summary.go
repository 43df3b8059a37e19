package output

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ListSummary condenses a paged fleet manager list response.
type ListSummary struct {
	Kind  string        `json:"kind" yaml:"kind"`
	Page  int64         `json:"page" yaml:"page"`
	Size  int64         `json:"size" yaml:"size"`
	Total int64         `json:"total" yaml:"total"`
	Items []ItemSummary `json:"items,omitempty" yaml:"items,omitempty"`
}

// ItemSummary is the identifying part of one list item.
type ItemSummary struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// SummarizeList extracts the paging fields and items of a list body.
func SummarizeList(body []byte) (*ListSummary, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("response body is not a JSON object")
	}

	summary := &ListSummary{
		Kind:  doc.Get("kind").String(),
		Page:  doc.Get("page").Int(),
		Size:  doc.Get("size").Int(),
		Total: doc.Get("total").Int(),
	}

	doc.Get("items").ForEach(func(_, item gjson.Result) bool {
		summary.Items = append(summary.Items, ItemSummary{
			ID:     item.Get("id").String(),
			Name:   item.Get("name").String(),
			Status: item.Get("status").String(),
			Region: item.Get("region").String(),
		})
		return true
	})

	return summary, nil
}

// FormatSummary renders s as text.
func (f *Formatter) FormatSummary(s *ListSummary) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("%s %s (page %d, %d of %d)\n",
		f.scheme.Label.Sprint("Kind:"), s.Kind, s.Page, len(s.Items), s.Total))

	for _, item := range s.Items {
		buf.WriteString(fmt.Sprintf("  %s  %s", f.scheme.Highlight.Sprint(item.ID), item.Name))
		if item.Status != "" {
			buf.WriteString("  " + item.Status)
		}
		if item.Region != "" {
			buf.WriteString("  " + item.Region)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}
