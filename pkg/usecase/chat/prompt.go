package chat

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/persona.md
var personaPromptRaw string

//go:embed prompt/message.md
var messagePromptRaw string

var messagePromptTmpl = template.Must(template.New("message").Parse(messagePromptRaw))

func buildMessagePrompt(sess *model.Session, message string, window int) (string, error) {
	var buf bytes.Buffer
	if err := messagePromptTmpl.Execute(&buf, map[string]any{
		"Context": buildSessionContext(sess, window),
		"Message": message,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute message prompt template")
	}
	return buf.String(), nil
}

// buildSessionContext renders the latest research findings and the
// recent conversation turns. Sessions that have not researched anything
// yet get no context block at all, conversation included.
func buildSessionContext(sess *model.Session, window int) string {
	latest := sess.LatestResearch()
	if latest == nil {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nCURRENT RESEARCH CONTEXT:\nTopic: %s\nSummary: %s\nKey Insights: %s\n\nPREVIOUS CONVERSATION:\n",
		latest.Topic, latest.Summary, latest.Insights)
	for _, conv := range sess.RecentConversations(window) {
		fmt.Fprintf(&sb, "User: %s\nARIA: %s\n\n", conv.User, conv.Assistant)
	}
	return sb.String()
}
