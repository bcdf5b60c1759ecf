// Package conversation implements the retrieval-augmented conversation
// engine: transcript management, context injection, the primary backend
// query and the correction pass.
package conversation

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/qmuntal/stateless"

	"github.com/bmedi/chatgse-go/internal/chat"
	"github.com/bmedi/chatgse-go/internal/config"
	"github.com/bmedi/chatgse-go/internal/logger"
	"github.com/bmedi/chatgse-go/internal/retriever"
)

// NoticeNoDocuments is surfaced (not raised) when retrieval augmentation is
// attached but nothing has been indexed yet.
const NoticeNoDocuments = "No document has been analysed yet. To use retrieval augmentation, please analyse at least one document first."

const correctionInstruction = "If there is nothing to correct, please respond with just 'OK', and nothing else!"

// Result is the outcome of one query. Usage == nil signals that the primary
// backend call failed and Text carries the error description; Correction is
// empty when the correcting agent found nothing to fix.
type Result struct {
	Text       string
	Usage      *chat.TokenUsage
	Correction string
	Notice     string
}

// Conversation is the backend-polymorphic engine contract.
type Conversation interface {
	// SetAPIKey validates the credential against the backend and, on
	// success, constructs the live client handles. An authentication
	// failure yields (false, nil); any other probe failure is fatal to
	// configuration and returned as an error.
	SetAPIKey(ctx context.Context, apiKey, user string) (bool, error)
	// Setup seeds the primary and correcting agent system prompts and
	// states the research topic. Call it once, before the first query.
	Setup(topic string)
	SetupDataInputManual(text string)
	SetupDataInputTool(data, fileName string)
	Query(ctx context.Context, text string) Result
	Transcript() []chat.Message
	TranscriptJSON() ([]byte, error)
}

// backend is what each concrete provider contributes to the shared engine.
// primaryQuery folds recoverable API failures into (errText, nil usage);
// correctResponse returns the raw correcting-agent output for one segment.
type backend interface {
	primaryQuery(ctx context.Context) (string, *chat.TokenUsage)
	correctResponse(ctx context.Context, msg string) (string, error)
}

// FSM states and triggers of the query pipeline.
type pipelineState stateless.State

var (
	stateInjectingContext pipelineState = "InjectingContext"
	stateCallingPrimary   pipelineState = "CallingPrimary"
	stateCorrecting       pipelineState = "Correcting"
	stateDone             pipelineState = "Done"
	stateFailed           pipelineState = "Failed"
)

type pipelineTrigger stateless.Trigger

var (
	triggerStart            pipelineTrigger = "Start"
	triggerContextInjected  pipelineTrigger = "ContextInjected"
	triggerPrimarySucceeded pipelineTrigger = "PrimarySucceeded"
	triggerPrimaryFailed    pipelineTrigger = "PrimaryFailed"
	triggerCorrectionDone   pipelineTrigger = "CorrectionDone"
)

// base carries the state shared by all backends: the primary transcript, the
// correcting agent's seed prompts, the data-input annotations and the
// optional document index.
type base struct {
	modelName       string
	prompts         config.PromptSet
	splitCorrection bool

	messages   []chat.Message
	caMessages []chat.Message

	topic     string
	dataInput string

	index    *retriever.Index
	nResults int

	tokenizer *sentences.DefaultSentenceTokenizer

	backend backend
}

// AttachIndex enables context injection from the given document index.
// nResults is the number of passages injected per query.
func (b *base) AttachIndex(ix *retriever.Index, nResults int) {
	if nResults <= 0 {
		nResults = 3
	}
	b.index = ix
	b.nResults = nResults
}

func (b *base) appendSystemMessage(content string) {
	b.messages = append(b.messages, chat.Message{Role: chat.RoleSystem, Content: content})
}

func (b *base) appendUserMessage(content string) {
	b.messages = append(b.messages, chat.Message{Role: chat.RoleUser, Content: content})
}

func (b *base) appendAIMessage(content string) {
	b.messages = append(b.messages, chat.Message{Role: chat.RoleAI, Content: content})
}

// Setup seeds the system prompts of both agents and appends the topic
// statement. The correcting agent's prompts go to its own seed transcript,
// never to the primary one.
func (b *base) Setup(topic string) {
	for _, p := range b.prompts.PrimaryModelPrompts {
		if p != "" {
			b.appendSystemMessage(p)
		}
	}
	for _, p := range b.prompts.CorrectingAgentPrompts {
		if p != "" {
			b.caMessages = append(b.caMessages, chat.Message{Role: chat.RoleSystem, Content: p})
		}
	}
	b.topic = topic
	b.appendSystemMessage(fmt.Sprintf("The topic of the research is %s.", topic))
}

// SetupDataInputManual appends a system message describing the user's data.
func (b *base) SetupDataInputManual(text string) {
	b.dataInput = text
	b.appendSystemMessage(fmt.Sprintf("The user has given information on the data input: %s.", text))
}

// SetupDataInputTool selects the tool prompt template whose key matches the
// uploaded file name and fills it with the structured data. When several
// keys match, the longest one wins; ties break lexicographically.
func (b *base) SetupDataInputTool(data, fileName string) {
	b.dataInput = data

	keys := make([]string, 0, len(b.prompts.ToolPrompts))
	for k := range b.prompts.ToolPrompts {
		if strings.Contains(fileName, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		logger.L.Warn("no tool prompt matches the uploaded file", "file", fileName)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	tmpl := b.prompts.ToolPrompts[keys[0]]
	b.appendSystemMessage(strings.ReplaceAll(tmpl, "{df}", data))
}

// Query runs the strictly sequential pipeline for one user prompt:
// context injection, primary backend call, correction pass. Backend
// failures terminate the pipeline with Usage == nil; the session stays
// usable for subsequent queries.
func (b *base) Query(ctx context.Context, text string) Result {
	b.appendUserMessage(text)

	var res Result
	fsm := stateless.NewStateMachine(stateInjectingContext)

	fsm.Configure(stateInjectingContext).
		PermitReentry(triggerStart).
		OnEntry(func(ctx context.Context, _ ...any) error {
			res.Notice = b.injectContext(ctx, text)
			return fsm.FireCtx(ctx, triggerContextInjected)
		}).
		Permit(triggerContextInjected, stateCallingPrimary)

	fsm.Configure(stateCallingPrimary).
		OnEntry(func(ctx context.Context, _ ...any) error {
			msg, usage := b.backend.primaryQuery(ctx)
			res.Text = msg
			res.Usage = usage
			if usage == nil {
				return fsm.FireCtx(ctx, triggerPrimaryFailed)
			}
			return fsm.FireCtx(ctx, triggerPrimarySucceeded)
		}).
		Permit(triggerPrimarySucceeded, stateCorrecting).
		Permit(triggerPrimaryFailed, stateFailed)

	fsm.Configure(stateCorrecting).
		OnEntry(func(ctx context.Context, _ ...any) error {
			res.Correction = b.runCorrection(ctx, res.Text)
			return fsm.FireCtx(ctx, triggerCorrectionDone)
		}).
		Permit(triggerCorrectionDone, stateDone)

	if err := fsm.FireCtx(ctx, triggerStart); err != nil {
		logger.L.Error("query pipeline error", "error", err)
	}
	if st := fsm.MustState(); st == stateFailed {
		logger.L.Debug("primary query failed", "error", res.Text)
	}
	return res
}

// injectContext retrieves the top passages for the query text and appends
// them as system messages using the injection prompt templates. A missing or
// empty index yields an informational notice instead of an error.
func (b *base) injectContext(ctx context.Context, text string) string {
	if b.index == nil {
		return ""
	}
	if !b.index.Ready() {
		return NoticeNoDocuments
	}
	results, err := b.index.SimilaritySearch(ctx, text, b.nResults)
	if err != nil {
		logger.L.Warn("similarity search failed, continuing without context", "error", err)
		return "Context retrieval failed: " + err.Error()
	}
	if len(results) == 0 {
		return ""
	}

	statements := make([]string, len(results))
	for i, r := range results {
		statements[i] = r.Passage.Content
	}
	joined := strings.Join(statements, "\n")

	prompts := b.prompts.RAGAgentPrompts
	if len(prompts) == 0 {
		b.appendSystemMessage(joined)
		return ""
	}
	for i, p := range prompts {
		if i == len(prompts)-1 {
			b.appendSystemMessage(strings.ReplaceAll(p, "{statements}", joined))
		} else {
			b.appendSystemMessage(p)
		}
	}
	return ""
}

// runCorrection critiques the candidate response, one call per sentence in
// split mode. Only non-OK results are kept, joined by newlines; an empty
// return means nothing to correct. A failed correction call is logged and
// skipped so it can never corrupt the primary result.
func (b *base) runCorrection(ctx context.Context, msg string) string {
	segments := []string{msg}
	if b.splitCorrection && b.tokenizer != nil {
		tokenized := b.tokenizer.Tokenize(msg)
		segments = segments[:0]
		for _, s := range tokenized {
			if t := strings.TrimSpace(s.Text); t != "" {
				segments = append(segments, t)
			}
		}
	}

	var corrections []string
	for _, seg := range segments {
		correction, err := b.backend.correctResponse(ctx, seg)
		if err != nil {
			logger.L.Warn("correction call failed, skipping segment", "error", err)
			continue
		}
		if isOK(correction) {
			continue
		}
		corrections = append(corrections, correction)
	}
	return strings.Join(corrections, "\n")
}

func isOK(correction string) bool {
	c := strings.ToLower(strings.TrimSpace(correction))
	return c == "ok" || c == "ok."
}

// correctionSeed builds the fresh correcting-agent transcript for one call:
// a copy of the seed system prompts, the candidate text, and the explicit
// OK instruction. Candidates never accumulate across calls.
func (b *base) correctionSeed(msg string) []chat.Message {
	msgs := slices.Clone(b.caMessages)
	msgs = append(msgs,
		chat.Message{Role: chat.RoleUser, Content: msg},
		chat.Message{Role: chat.RoleSystem, Content: correctionInstruction},
	)
	return msgs
}

// Transcript returns a copy of the primary transcript.
func (b *base) Transcript() []chat.Message {
	return slices.Clone(b.messages)
}

// TranscriptJSON exports the transcript for logging and audit.
func (b *base) TranscriptJSON() ([]byte, error) {
	return chat.TranscriptJSON(b.messages)
}
