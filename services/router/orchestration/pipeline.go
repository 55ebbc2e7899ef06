// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestration sequences one chat request through the security
// gate, classifier, responders, converter, and conversation store, building
// the workflow audit trail as it goes.
package orchestration

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meridianpay/agent-router/services/router/classifier"
	"github.com/meridianpay/agent-router/services/router/conversation"
	"github.com/meridianpay/agent-router/services/router/datatypes"
	"github.com/meridianpay/agent-router/services/router/observability"
	"github.com/meridianpay/agent-router/services/router/responders"
	"github.com/meridianpay/agent-router/services/securitygate"
)

var pipelineTracer = otel.Tracer("agentrouter.orchestration")

// Canned user-facing messages. Short-circuit outcomes never expose internal
// detail; the workflow trail carries the specifics instead.
const (
	UnsupportedLanguageMessage = "Unsupported language. Please ask in English or Portuguese."
	GenericErrorMessage        = "Sorry, I could not process your request."
	RejectedMessage            = "Sorry, I can't help with that request."
)

// requestState tracks the pipeline position for debug logging. Terminal
// outcomes always pass through stateResponded.
type requestState string

const (
	stateReceived        requestState = "received"
	stateSecurityChecked requestState = "security_checked"
	stateClassified      requestState = "classified"
	stateDispatched      requestState = "dispatched"
	stateResponderDone   requestState = "responder_done"
	stateConverted       requestState = "converted"
	statePersisted       requestState = "persisted"
	stateResponded       requestState = "responded"
)

// Outcome statuses reported to metrics and logs.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusDegraded = "degraded" // answer delivered, history write lost
)

// Pipeline is the per-request orchestrator.
//
// # Description
//
// HandleChat always produces a complete ChatResponse with exactly one
// routing decision, even when every capability fails. Failures map to the
// Error decision with a generic message; only the conversation store is
// allowed to fail without affecting the answer (degraded success).
//
// Exchanges are persisted only for fully successful responder outcomes.
// Canned short-circuits (unsupported language, rejection, errors) never
// write to the store, so history never contains a failed turn.
//
// # Thread Safety
//
// Safe for concurrent use; per-request state lives on the stack.
type Pipeline struct {
	gate       *securitygate.Gate
	classifier *classifier.Classifier
	math       *responders.MathResponder
	knowledge  *responders.KnowledgeResponder
	converter  *responders.Converter
	store      conversation.Store
	metrics    *observability.RouterMetrics
}

// NewPipeline wires the pipeline components. All components are required
// except metrics, which may be nil (metrics calls become no-ops).
func NewPipeline(
	gate *securitygate.Gate,
	cls *classifier.Classifier,
	math *responders.MathResponder,
	knowledge *responders.KnowledgeResponder,
	converter *responders.Converter,
	store conversation.Store,
	metrics *observability.RouterMetrics,
) *Pipeline {
	return &Pipeline{
		gate:       gate,
		classifier: cls,
		math:       math,
		knowledge:  knowledge,
		converter:  converter,
		store:      store,
		metrics:    metrics,
	}
}

// chatRun accumulates per-request state while the pipeline advances.
type chatRun struct {
	req       datatypes.ChatRequest
	started   time.Time
	state     requestState
	sanitized string
	decision  datatypes.Decision
	rawResult string
	response  string
	status    string
	trail     []datatypes.WorkflowStep
}

func (r *chatRun) transition(next requestState) {
	slog.Debug("Pipeline transition",
		"conversation_id", r.req.ConversationId,
		"from", string(r.state),
		"to", string(next),
	)
	r.state = next
}

func (r *chatRun) step(agent, action, result string) {
	r.trail = append(r.trail, datatypes.WorkflowStep{Agent: agent, Action: action, Result: result})
}

// HandleChat runs one chat request through the full pipeline.
func (p *Pipeline) HandleChat(ctx context.Context, req datatypes.ChatRequest) datatypes.ChatResponse {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.HandleChat")
	defer span.End()

	p.metrics.RequestStarted()
	defer p.metrics.RequestEnded()

	run := &chatRun{
		req:     req,
		started: time.Now(),
		state:   stateReceived,
		status:  statusSuccess,
	}

	p.securityStage(run)

	if run.decision == "" {
		p.classifyStage(ctx, run)
	}

	switch run.decision {
	case datatypes.DecisionUnsupportedLanguage:
		// Canned short-circuit, whether the gate or the classifier decided
		// it: no responder, no conversion, no store write.
		run.response = UnsupportedLanguageMessage
		run.rawResult = UnsupportedLanguageMessage
		run.step("System", "reject", string(run.decision))

	default:
		p.dispatchStage(ctx, run)
		if run.status != statusError {
			p.convertStage(ctx, run)
			p.persistStage(ctx, run)
		}
	}

	run.transition(stateResponded)
	span.SetAttributes(
		attribute.String("chat.decision", string(run.decision)),
		attribute.String("chat.status", run.status),
	)
	p.metrics.RecordRequest(string(run.decision), run.status)
	slog.Info("Chat request completed",
		"conversation_id", req.ConversationId,
		"user_id", req.UserId,
		"decision", string(run.decision),
		"status", run.status,
		"duration_ms", time.Since(run.started).Milliseconds(),
	)

	return datatypes.ChatResponse{
		UserId:              req.UserId,
		ConversationId:      req.ConversationId,
		RouterDecision:      run.decision,
		Response:            run.response,
		SourceAgentResponse: run.rawResult,
		AgentWorkflow:       run.trail,
	}
}

// securityStage sanitizes the message and maps the verdict onto routing.
// A Suspicious verdict forces KnowledgeResponder without consulting the
// classifier; UnsupportedLanguage decides the request outright.
func (p *Pipeline) securityStage(run *chatRun) {
	start := time.Now()
	sanitized, verdict := p.gate.Evaluate(run.req.Message)
	p.metrics.ObserveStage(observability.StageGate, time.Since(start))

	run.sanitized = sanitized
	run.step("SecurityGate", "evaluate", string(verdict.Kind))
	run.transition(stateSecurityChecked)

	switch verdict.Kind {
	case securitygate.VerdictUnsupportedLanguage:
		p.metrics.RecordSecurityTrigger("unsupported_language")
		run.decision = datatypes.DecisionUnsupportedLanguage

	case securitygate.VerdictSuspicious:
		p.metrics.RecordSecurityTrigger("suspicious")
		run.decision = datatypes.DecisionKnowledge
		run.step("Classifier", "forced_route", string(datatypes.DecisionKnowledge))
		run.transition(stateClassified)
	}
}

// classifyStage asks the classifier for a decision. Failures and out-of-set
// output both collapse to the Error decision.
func (p *Pipeline) classifyStage(ctx context.Context, run *chatRun) {
	start := time.Now()
	decision, err := p.classifier.Classify(ctx, run.sanitized)
	p.metrics.ObserveStage(observability.StageClassify, time.Since(start))

	if classifier.IsInvalidDecisionError(err) {
		slog.Error("Classifier output outside the decision set", "error", err)
	} else if err != nil {
		cerr := &CapabilityError{Capability: "completion", Stage: "classify", Err: err}
		slog.Error("Classification failed", "error", cerr)
	}

	run.decision = decision
	run.step("Classifier", "classify", string(decision))
	run.transition(stateClassified)
}

// dispatchStage runs the responder selected by the decision.
// UnsupportedLanguage is short-circuited before dispatch and never reaches
// this switch; there is no default responder.
func (p *Pipeline) dispatchStage(ctx context.Context, run *chatRun) {
	run.transition(stateDispatched)
	start := time.Now()

	switch run.decision {
	case datatypes.DecisionMath:
		result, err := p.math.Solve(ctx, run.sanitized)
		if err != nil {
			p.failRequest(run, &CapabilityError{Capability: "completion", Stage: "solve_math", Err: err})
			break
		}
		run.rawResult = result
		run.step("MathResponder", "solve_math", result)

	case datatypes.DecisionKnowledge:
		answer, sources, err := p.knowledge.Answer(ctx, run.sanitized)
		if err != nil {
			p.failRequest(run, &CapabilityError{Capability: "retrieval", Stage: "query_knowledge", Err: err})
			break
		}
		run.rawResult = answer
		run.step("KnowledgeResponder", "query_knowledge", answer)
		slog.Debug("Knowledge answer grounded", "sources_count", len(sources))

	case datatypes.DecisionRejected:
		run.rawResult = RejectedMessage
		run.response = RejectedMessage
		run.status = statusError
		run.step("System", "reject", string(datatypes.DecisionRejected))

	case datatypes.DecisionError:
		run.rawResult = GenericErrorMessage
		run.response = GenericErrorMessage
		run.status = statusError
		run.step("System", "error", string(datatypes.DecisionError))
	}

	p.metrics.ObserveStage(observability.StageRespond, time.Since(start))
	if run.status != statusError {
		run.transition(stateResponderDone)
	}
}

// convertStage turns the raw responder result into the user-facing text.
// Conversion never fails the request; the converter falls back internally.
func (p *Pipeline) convertStage(ctx context.Context, run *chatRun) {
	start := time.Now()
	run.response = p.converter.Convert(ctx, run.decision, run.sanitized, run.rawResult)
	p.metrics.ObserveStage(observability.StageConvert, time.Since(start))

	if run.response != run.rawResult {
		run.step("ResponseConverter", "convert", run.response)
	}
	run.transition(stateConverted)
}

// persistStage appends the completed exchange and tracks the conversation
// for the user. Store failures degrade the response instead of failing it:
// losing history is acceptable, losing the live answer is not.
func (p *Pipeline) persistStage(ctx context.Context, run *chatRun) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveStage(observability.StagePersist, time.Since(start))
	}()

	ex := datatypes.NewExchange(run.sanitized, run.response, run.decision, time.Since(run.started))
	if err := p.store.Append(ctx, run.req.ConversationId, ex); err != nil {
		serr := &StoreError{Operation: "append", Err: err}
		slog.Error("Failed to persist exchange, returning the answer anyway",
			"conversation_id", run.req.ConversationId,
			"error", serr,
		)
		p.metrics.RecordStoreFailure("append")
		run.status = statusDegraded
		run.step("ConversationStore", "append", "failed")
		return
	}

	if err := p.store.Track(ctx, run.req.UserId, run.req.ConversationId); err != nil {
		// Index bookkeeping only; the exchange itself is safe.
		slog.Warn("Failed to track conversation for user",
			"user_id", run.req.UserId,
			"conversation_id", run.req.ConversationId,
			"error", err,
		)
		p.metrics.RecordStoreFailure("track")
	}

	run.step("ConversationStore", "append", "persisted")
	run.transition(statePersisted)
}

// failRequest maps a stage failure onto the Error decision with the generic
// message. The original decision is preserved in the trail before this point.
func (p *Pipeline) failRequest(run *chatRun, err error) {
	slog.Error("Responder failed", "decision", string(run.decision), "error", err)
	run.decision = datatypes.DecisionError
	run.rawResult = GenericErrorMessage
	run.response = GenericErrorMessage
	run.status = statusError
	run.step("System", "error", string(datatypes.DecisionError))
}

// History returns the conversation log for the caller-facing read API.
// Store failures surface as empty results to keep clients resilient.
func (p *Pipeline) History(ctx context.Context, conversationId string) []datatypes.Exchange {
	history, err := p.store.History(ctx, conversationId)
	if err != nil {
		slog.Error("Failed to read conversation history",
			"conversation_id", conversationId,
			"error", &StoreError{Operation: "history", Err: err},
		)
		p.metrics.RecordStoreFailure("history")
		return nil
	}
	return history
}

// ListConversations returns the live conversation ids for a user, empty on
// store failure.
func (p *Pipeline) ListConversations(ctx context.Context, userId string) []string {
	ids, err := p.store.ListConversations(ctx, userId)
	if err != nil {
		slog.Error("Failed to list conversations",
			"user_id", userId,
			"error", &StoreError{Operation: "list", Err: err},
		)
		p.metrics.RecordStoreFailure("list")
		return nil
	}
	return ids
}
