package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/gorm"

	"wabiz/models"
)

// StepResult is what one inbound text does to a conversation's dialogue.
type StepResult struct {
	State   State
	Context models.ContextData
	Replies []string
}

// Script holds the tenant-independent settings of the scripted dialogue.
type Script struct {
	SchedulingURL string
}

type transition func(s Script, cur StepResult, input, raw string) StepResult

var transitions map[State]transition

func init() {
	transitions = map[State]transition{
		StateMenuPrincipal:               onMenuPrincipal,
		StateEsperandoContacto:           onEsperandoContacto,
		StateEsperandoEmail:              onEsperandoEmail,
		StateEsperandoArea:               onEsperandoArea,
		StateEsperandoAreaOtro:           onEsperandoAreaOtro,
		StateEsperandoTipoAutomatizacion: onEsperandoTipo,
		StateEsperandoTipoOtro:           onEsperandoTipoOtro,
		StateInfoServicios:               onInfoServicios,
	}
}

// Step applies one inbound text to (state, data). It is pure: the same inputs
// always give the same result.
func (s Script) Step(state State, data models.ContextData, text string, isNew bool, now time.Time) StepResult {
	raw := strings.TrimSpace(text)
	input := strings.ToLower(raw)
	cur := StepResult{State: state, Context: data}

	switch {
	case input == "salir":
		return StepResult{
			State:   StateMenuPrincipal,
			Context: models.ContextData{},
			Replies: []string{msgReset, msgMainMenu},
		}
	case input == "menu" || input == "menú":
		// sem resposta: a regra de boas-vindas é dona do menu
		cur.State = StateMenuPrincipal
		cur.Context.LastCommand = "menu"
		return cur
	case state != StateNone && isPolite(input):
		cur.Replies = []string{msgAck}
		return cur
	case state == StateNone && (isNew || input == "hola"):
		started := now
		cur.State = StateMenuPrincipal
		cur.Context.StartedAt = &started
		return cur
	case state == StateNone:
		return cur
	}

	next, ok := transitions[state]
	if !ok {
		return reply(cur, StateMenuPrincipal, msgMainMenu)
	}
	return next(s, cur, input, raw)
}

func reply(cur StepResult, next State, texts ...string) StepResult {
	cur.State = next
	cur.Replies = append(cur.Replies, texts...)
	return cur
}

func onMenuPrincipal(_ Script, cur StepResult, input, _ string) StepResult {
	switch input {
	case "1":
		cur.Context.Intent = INTENT_AUTOMATIZAR
		return reply(cur, StateEsperandoArea, msgAreaMenu)
	case "2":
		cur.Context.Intent = INTENT_SERVICIOS
		return reply(cur, StateInfoServicios, msgServices)
	case "3":
		cur.Context.Intent = INTENT_ASESOR
		return reply(cur, StateEsperandoContacto, msgContactMenu)
	case "":
		return cur
	}
	return reply(cur, cur.State, msgMenuReprompt)
}

func onEsperandoContacto(s Script, cur StepResult, input, _ string) StepResult {
	switch input {
	case "1":
		cur.Context.ContactMode = CONTACT_MODE_VIDEOLLAMADA
		return reply(cur, StateNone, msgSchedule(s.SchedulingURL))
	case "2":
		cur.Context.ContactMode = CONTACT_MODE_WHATSAPP
		return reply(cur, StateNone, msgAgentWhatsApp)
	case "3":
		cur.Context.ContactMode = CONTACT_MODE_EMAIL
		return reply(cur, StateEsperandoEmail, msgAskEmail)
	case "":
		return cur
	}
	return reply(cur, cur.State, msgContactReprompt)
}

func onEsperandoEmail(_ Script, cur StepResult, input, raw string) StepResult {
	if strings.Contains(input, "@") {
		cur.Context.Email = raw
		return reply(cur, StateNone, msgEmailThanks(raw))
	}
	if input == "" {
		return cur
	}
	return reply(cur, cur.State, msgEmailReprompt)
}

func onEsperandoArea(_ Script, cur StepResult, input, _ string) StepResult {
	switch input {
	case "1", "2", "3", "4", "5":
		cur.Context.Area = areaLabel(input)
		return reply(cur, StateEsperandoTipoAutomatizacion, msgTypeMenu)
	case "6":
		return reply(cur, StateEsperandoAreaOtro, msgAreaOther)
	case "":
		return cur
	}
	return reply(cur, cur.State, msgAreaReprompt)
}

func onEsperandoAreaOtro(_ Script, cur StepResult, input, raw string) StepResult {
	if input == "" {
		return cur
	}
	cur.Context.Area = raw
	return reply(cur, StateEsperandoTipoAutomatizacion, msgTypeMenu)
}

func onEsperandoTipo(_ Script, cur StepResult, input, _ string) StepResult {
	switch input {
	case "1", "2", "3":
		cur.Context.AutomationType = automationLabel(input)
		return reply(cur, StateNone, msgAdvisor(cur.Context.AutomationType))
	case "4":
		return reply(cur, StateEsperandoTipoOtro, msgTypeOther)
	case "":
		return cur
	}
	return reply(cur, cur.State, msgTypeReprompt)
}

func onEsperandoTipoOtro(_ Script, cur StepResult, input, raw string) StepResult {
	if input == "" {
		return cur
	}
	cur.Context.AutomationType = raw
	return reply(cur, StateNone, msgAdvisor(raw))
}

// onInfoServicios: the polite branch only runs when called directly, Step answers
// polite words before reaching the table.
func onInfoServicios(_ Script, cur StepResult, input, _ string) StepResult {
	switch {
	case mentionsArea(input):
		cur.Context.Intent = INTENT_AUTOMATIZAR_DESDE_INFO
		return reply(cur, StateEsperandoArea, msgAreaMenu)
	case isPolite(input):
		return reply(cur, cur.State, msgInfoFollowUp)
	case input == "":
		return cur
	}
	return reply(cur, StateMenuPrincipal, msgMainMenu)
}

/************************************************
/**** MARK: RESPONDER ****/
/************************************************/

// StateMachine runs the scripted dialogue for a conversation and owns the reply
// whenever the dialogue has something to say.
type StateMachine struct {
	DB     *gorm.DB
	Outbox *Outbox
	Script Script
	Now    func() time.Time
}

func (m *StateMachine) Name() string { return "state_machine" }

func (m *StateMachine) TryHandle(ctx context.Context, in *Inbound) (Outcome, error) {
	conv := in.Conversation
	if conv == nil {
		return NotHandled, fmt.Errorf("state machine: inbound without conversation")
	}

	res := m.Script.Step(ParseState(conv.State()), conv.ContextData, in.Text, in.IsNewConversation, m.now())

	// persiste sempre, mesmo sem resposta (salir/menu precisam ficar gravados)
	err := m.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"context_state": res.State.Ptr(),
			"context_data":  res.Context,
		}).Error
	if err != nil {
		in.logger().WithError(err).Error("state machine: failed to persist dialogue state")
	}
	conv.ContextState = res.State.Ptr()
	conv.ContextData = res.Context

	if len(res.Replies) == 0 {
		return NotHandled, nil
	}

	sent := m.Outbox.Deliver(ctx, in, models.PROVENANCE_STATE_MACHINE, res.Replies, models.JSONMap{
		"state": string(res.State),
	})
	return Outcome{Handled: true, Replies: len(res.Replies), Sent: sent}, nil
}

func (m *StateMachine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
