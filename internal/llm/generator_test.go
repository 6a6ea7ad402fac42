package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

type fakeModel struct {
	reply    string
	err      error
	calls    int
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.reply, f.err
}

func TestTemplateAnswerQuotesArticle(t *testing.T) {
	g := NewTemplateGenerator()
	ans, err := g.Answer(context.Background(), AnswerRequest{
		Question: "How do I reset my password?",
		Article:  domain.KnowledgeArticle{Title: "Reset your password", Content: "1. Click Forgot password."},
	})
	require.NoError(t, err)
	assert.Contains(t, ans.Reply, "Click Forgot password")
	assert.Nil(t, ans.Confidence)
	assert.False(t, ans.Escalate)
}

func TestTemplateTriage(t *testing.T) {
	tr, err := NewTemplateGenerator().Triage(context.Background(), "My invoice shows a double charge")
	require.NoError(t, err)
	assert.Equal(t, "Billing", tr.Category)
	assert.Equal(t, "My invoice shows a double charge", tr.Summary)
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "Network", Categorize("VPN will not connect from home"))
	assert.Equal(t, "Technical", Categorize("The app crashes on launch"))
}

func TestTemplateDraftArticle(t *testing.T) {
	d, err := NewTemplateGenerator().DraftArticle(context.Background(), DraftRequest{
		Issues:      []string{"Printer on floor 3 is jammed", "printer jammed again on floor 3"},
		Resolutions: []string{"Opened tray B and removed the stuck sheet", "Opened tray B and removed the stuck sheet"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Recurring issue: Printer on floor 3 is jammed", d.Title)
	assert.Contains(t, d.Tags, "printer")
	assert.Equal(t, "Hardware", d.Category)
	assert.Contains(t, d.Content, "1. Opened tray B")
	assert.NotContains(t, d.Content, "2. Opened tray B")
	assert.NotEmpty(t, d.Tags)
}

func TestOpenAIAnswerParsesFencedJSON(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"status\":\"auto_resolved\",\"user_reply\":\"Click Forgot password.\",\"confidence\":\"High\",\"internal_note\":null}\n```"}
	g := NewModelGenerator(model, config.LLMConfig{RequestsPerSecond: 0})

	ans, err := g.Answer(context.Background(), AnswerRequest{Question: "reset password"})
	require.NoError(t, err)
	assert.Equal(t, "Click Forgot password.", ans.Reply)
	require.NotNil(t, ans.Confidence)
	assert.Equal(t, 0.9, *ans.Confidence)
	assert.False(t, ans.Escalate)
}

func TestOpenAIAnswerEscalation(t *testing.T) {
	model := &fakeModel{reply: `{"status":"needs_escalation","user_reply":"Escalating.","confidence":"Medium","internal_note":"already tried"}`}
	g := NewModelGenerator(model, config.LLMConfig{})

	ans, err := g.Answer(context.Background(), AnswerRequest{Question: "still locked out"})
	require.NoError(t, err)
	assert.True(t, ans.Escalate)
	assert.Equal(t, "already tried", ans.Reason)
	assert.Equal(t, 0.6, *ans.Confidence)
}

func TestOpenAIErrorsPropagate(t *testing.T) {
	g := NewModelGenerator(&fakeModel{err: errors.New("503")}, config.LLMConfig{})
	_, err := g.Answer(context.Background(), AnswerRequest{Question: "x"})
	assert.Error(t, err)

	g = NewModelGenerator(&fakeModel{reply: "not json"}, config.LLMConfig{})
	_, err = g.Triage(context.Background(), "x")
	assert.Error(t, err)
}

func TestOpenAIDraftDefaults(t *testing.T) {
	g := NewModelGenerator(&fakeModel{reply: `{"title":"","content":"Steps","tags":["vpn"]}`}, config.LLMConfig{})
	d, err := g.DraftArticle(context.Background(), DraftRequest{Issues: []string{"vpn"}})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", d.Title)
	assert.Equal(t, "General", d.Category)
	assert.Equal(t, []string{"vpn"}, d.Tags)
}

func TestOpenAISendsSystemThenHumanMessage(t *testing.T) {
	model := &fakeModel{reply: `{"category":"Account","summary":"Locked out"}`}
	g := NewModelGenerator(model, config.LLMConfig{})

	tr, err := g.Triage(context.Background(), "I am locked out of my account")
	require.NoError(t, err)
	assert.Equal(t, "Account", tr.Category)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	require.Len(t, model.messages[1].Parts, 1)
	text, ok := model.messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "locked out")
}
