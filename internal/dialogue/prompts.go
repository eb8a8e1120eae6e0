package dialogue

import (
	"fmt"
	"time"

	"barberline/internal/catalog"
	"barberline/internal/extractor"
	"barberline/pkg/model"
)

const (
	msgNotCaught       = "Sorry, I didn't quite get that."
	msgLookupFailed    = "Sorry, I can't look that up right now."
	msgOffTopic        = "I can only help with appointments and questions about the shop."
	msgSlotTaken       = "Sorry, that time was just taken."
	msgHoldLapsed      = "Sorry, I couldn't hold that time any longer."
	msgNoProblem       = "No problem."
	msgYesOrNo         = "Please say yes to book it, or no and I'll find another time."
	msgTechnicalIssue  = "I'm having trouble booking that right now. Please call back in a few minutes and we'll get you in."
	msgAskWindowAgain  = "What other day or time would suit you?"
	msgResume          = "Now, back to your booking."
	proposalTimeLayout = "Monday, January 2 at 3:04 PM"
)

// prompts renders every sentence the agent speaks. Phrasing lives here so
// the state machine only decides what to say next.
type prompts struct {
	shop     string
	services string
	catalog  *catalog.Catalog
	loc      *time.Location
}

func newPrompts(cat *catalog.Catalog, loc *time.Location) *prompts {
	return &prompts{
		shop:     cat.ShopName,
		services: cat.ServiceNames(),
		catalog:  cat,
		loc:      loc,
	}
}

func (p *prompts) greeting() string {
	return fmt.Sprintf("Thanks for calling %s. Are you calling to book an appointment, or can I answer a question?", p.shop)
}

func (p *prompts) goodbye() string {
	return fmt.Sprintf("Thanks for calling %s. Have a great day!", p.shop)
}

func (p *prompts) declined() string {
	return fmt.Sprintf("No worries. Thanks for calling %s. Have a great day!", p.shop)
}

func (p *prompts) callback() string {
	return fmt.Sprintf("I'm having trouble hearing you. Please call %s back any time and we'll get you booked. Goodbye!", p.shop)
}

func (p *prompts) serviceName(id string) string {
	if svc, ok := p.catalog.Service(id); ok {
		return svc.Name
	}
	return id
}

// ask renders the question for one missing field. retry marks a field that
// was heard but could not be used.
func (p *prompts) ask(key extractor.FieldKey, retry bool) string {
	switch key {
	case extractor.FieldService:
		if retry {
			return fmt.Sprintf("I can book %s. Which one would you like?", p.services)
		}
		return fmt.Sprintf("What service would you like? We offer %s.", p.services)
	case extractor.FieldName:
		if retry {
			return "Sorry, I didn't catch your name. Could you say your first and last name?"
		}
		return "Great. Can I get your name, please?"
	case extractor.FieldPhone:
		if retry {
			return "That number didn't sound complete. Could you say your phone number again, digit by digit?"
		}
		return "Thanks! What phone number should I use for your appointment?"
	case extractor.FieldWindow:
		return "Do you have a preferred day and time, or should I find the next available slot?"
	}
	return "How can I help you today?"
}

// askWindow re-asks the time preference after a phrase that could not be
// resolved to a window.
func (p *prompts) askWindow(reason string) string {
	switch reason {
	case "past":
		return "That time has already passed. What other day or time works for you?"
	case "date":
		return "I couldn't find that date. Could you say a day, like tomorrow or Friday?"
	default:
		return "Which day works for you? For example, tomorrow morning or Friday at 3 PM."
	}
}

func (p *prompts) proposal(slot *model.ProposedSlot, serviceID string) string {
	return fmt.Sprintf("I have %s available %s for a %s. Would you like me to book it?",
		slot.BarberName, slot.StartTime.In(p.loc).Format(proposalTimeLayout), p.serviceName(serviceID))
}

func (p *prompts) booked(slot *model.ProposedSlot, name string) string {
	return fmt.Sprintf("You're all set, %s. You're booked with %s on %s. See you then!",
		name, slot.BarberName, slot.StartTime.In(p.loc).Format(proposalTimeLayout))
}

func (p *prompts) confirmAgain(slot *model.ProposedSlot, serviceID string) string {
	return "Got it, I've updated that. " + p.proposal(slot, serviceID)
}

func (p *prompts) noAvailability(window *model.TimeWindow) string {
	if window == nil || window.Open {
		return "I couldn't find any openings in the next two weeks. Please say a day and time, for example Friday at 3 PM."
	}
	return fmt.Sprintf("I couldn't find a free time %s. Would another time work, or should I find the next available slot?", window.Label)
}

func (p *prompts) noAlternatives() string {
	return "That was the last opening I could find for that time. Would you like a different service or another day?"
}
