package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

func TestBuildFlowFromNumberedSteps(t *testing.T) {
	flow := BuildFlow(kbArticles()[0])

	require.Len(t, flow.Steps, 3)
	assert.Equal(t, "step_1", flow.Steps[0].ID)
	assert.Equal(t, "step_2", flow.Steps[0].Next)
	assert.Equal(t, stepEnd, flow.Steps[2].Next)
}

func TestBuildFlowAddsDeviceChoice(t *testing.T) {
	article := domain.KnowledgeArticle{
		ID:      "kb-wifi",
		Title:   "Connecting to office wifi",
		Content: "iPhone: open Settings and pick CorpNet.\nAndroid: open Wi-Fi and pick CorpNet.\n\n1. Enter your username.\n2. Accept the certificate.",
	}

	flow := BuildFlow(article)

	require.NotEmpty(t, flow.Steps)
	device := flow.Steps[0]
	assert.Equal(t, stepDevice, device.ID)
	assert.Equal(t, "device_type", device.SaveAs)
	assert.Len(t, device.Options, 2)
	assert.Equal(t, "Iphone", device.Options[0].Label)
}

func TestBuildFlowFallsBackToWholeContent(t *testing.T) {
	flow := BuildFlow(domain.KnowledgeArticle{ID: "kb-1", Title: "Badge access", Content: "Visit reception."})

	require.Len(t, flow.Steps, 1)
	assert.Equal(t, "Visit reception.", flow.Steps[0].Message)
}

func TestChooseOption(t *testing.T) {
	options := []domain.DialogOption{{ID: "iphone", Label: "Iphone"}, {ID: "android", Label: "Android"}}

	opt, ok := chooseOption(options, "2")
	require.True(t, ok)
	assert.Equal(t, "android", opt.ID)

	opt, ok = chooseOption(options, "I'm on an iPhone")
	require.True(t, ok)
	assert.Equal(t, "iphone", opt.ID)

	_, ok = chooseOption(options, "blackberry")
	assert.False(t, ok)
}

func TestPhrases(t *testing.T) {
	assert.True(t, IsNegative("nope"))
	assert.True(t, IsNegative("It still not working"))
	assert.False(t, IsNegative("done"))
	assert.True(t, IsResolution("Thanks, that worked"))
	assert.True(t, IsConfirmation("ok next"))
	assert.True(t, HasEscalationTrigger("I need admin access to the finance share"))
}

func TestPhrasesMatchWholeWords(t *testing.T) {
	// "ready" inside "already", "ok" inside "broken"
	assert.False(t, IsConfirmation("I already looked"))
	assert.False(t, IsConfirmation("the hinge is brokenish"))
	assert.False(t, IsResolution("the unfixed build"))
	assert.True(t, IsConfirmation("Ok, ready"))
	assert.True(t, IsNegative("It doesnt work"))
	assert.True(t, IsNegative("It doesn’t work"))
	assert.False(t, IsNegative("No problem, it works now"))
	assert.True(t, IsResolution("No problem, it works now"))
}

func TestEscalationTriggersAreSpecific(t *testing.T) {
	assert.False(t, HasEscalationTrigger("How do I set folder permissions for my team?"))
	assert.False(t, HasEscalationTrigger("Can a human-readable report be exported?"))
	assert.True(t, HasEscalationTrigger("Permission denied when opening the share"))
	assert.True(t, HasEscalationTrigger("I'd like to talk to a human"))
	assert.False(t, IsNegative("Export the report as human readable text"))
}
