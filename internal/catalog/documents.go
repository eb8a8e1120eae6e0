package catalog

import (
	"fmt"
	"strings"

	"barberline/pkg/model"
)

// Documents returns the text the knowledge retriever indexes: one document
// per service (a price paragraph, then the description), one for the opening
// hours, one for who offers what, and the free-form policy and FAQ entries.
func (c *Catalog) Documents() []model.KnowledgeDocument {
	docs := make([]model.KnowledgeDocument, 0, len(c.Services)+len(c.Knowledge)+2)

	for _, s := range c.Services {
		docs = append(docs, model.KnowledgeDocument{
			ID: "service-" + strings.ToLower(s.ID),
			Text: fmt.Sprintf("%s costs %s and takes %d minutes.\n\n%s: %s",
				s.Name, s.PriceText(), s.DurationMin, s.Name, s.Description),
			Metadata: map[string]string{
				model.MetaServiceID: s.ID,
				model.MetaTopic:     "service",
			},
		})
	}

	docs = append(docs, model.KnowledgeDocument{
		ID: "hours",
		Text: fmt.Sprintf("%s is open %s from %s to %s.",
			c.ShopName, c.openDaysText(), c.Hours.Open, c.Hours.Close),
		Metadata: map[string]string{model.MetaTopic: "hours"},
	})

	var lines []string
	for _, b := range c.ActiveBarbers() {
		names := make([]string, 0, len(b.ServiceIDs))
		for _, id := range b.ServiceIDs {
			if s, ok := c.Service(id); ok {
				names = append(names, s.Name)
			}
		}
		lines = append(lines, fmt.Sprintf("%s offers %s.", b.Name, strings.Join(names, ", ")))
	}
	if len(lines) > 0 {
		docs = append(docs, model.KnowledgeDocument{
			ID:       "barbers",
			Text:     "Our barbers: " + strings.Join(lines, " "),
			Metadata: map[string]string{model.MetaTopic: "barbers"},
		})
	}

	docs = append(docs, c.Knowledge...)
	return docs
}

var dayNames = map[string]string{
	"sun": "Sunday", "mon": "Monday", "tue": "Tuesday", "wed": "Wednesday",
	"thu": "Thursday", "fri": "Friday", "sat": "Saturday",
}

func (c *Catalog) openDaysText() string {
	names := make([]string, 0, len(c.Hours.Days))
	for _, d := range c.Hours.Days {
		if n, ok := dayNames[strings.ToLower(d)]; ok {
			names = append(names, n)
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
