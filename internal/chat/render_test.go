package chat

import (
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/formatter"
)

func sampleBlocks() []formatter.Block {
	return []formatter.Block{
		{Type: formatter.BlockContext, Text: "account"},
		{Type: formatter.BlockHeader, Text: "Subject line"},
		{Type: formatter.BlockMeta, Fields: []formatter.Field{
			{Label: "From", Value: "a@example.com"},
			{Label: "To", Value: "b@example.com"},
		}},
		{Type: formatter.BlockDivider},
		{Type: formatter.BlockSection, Text: "the body"},
	}
}

func TestRenderSlackBlocks(t *testing.T) {
	out := renderSlackBlocks(sampleBlocks())
	if len(out) != 5 {
		t.Fatalf("blocks = %d, want 5", len(out))
	}

	if _, ok := out[0].(*slack.ContextBlock); !ok {
		t.Fatalf("out[0] = %T, want context block", out[0])
	}

	header, ok := out[1].(*slack.SectionBlock)
	if !ok {
		t.Fatalf("out[1] = %T, want section block", out[1])
	}
	if header.Text.Text != "*Subject line*" {
		t.Errorf("header text = %q, want bolded subject", header.Text.Text)
	}
	if header.Text.Type != slack.MarkdownType {
		t.Errorf("header text type = %q", header.Text.Type)
	}

	meta, ok := out[2].(*slack.SectionBlock)
	if !ok {
		t.Fatalf("out[2] = %T, want section block", out[2])
	}
	if !strings.Contains(meta.Text.Text, "*From:* a@example.com") {
		t.Errorf("meta text = %q", meta.Text.Text)
	}
	if !strings.Contains(meta.Text.Text, "*To:* b@example.com") {
		t.Errorf("meta text = %q", meta.Text.Text)
	}

	if _, ok := out[3].(*slack.DividerBlock); !ok {
		t.Errorf("out[3] = %T, want divider block", out[3])
	}

	body, ok := out[4].(*slack.SectionBlock)
	if !ok {
		t.Fatalf("out[4] = %T, want section block", out[4])
	}
	if body.Text.Text != "the body" {
		t.Errorf("body text = %q", body.Text.Text)
	}
}

func TestRenderTelegramHTML(t *testing.T) {
	out := renderTelegramHTML(sampleBlocks())

	for _, want := range []string{
		"<i>account</i>",
		"<b>Subject line</b>",
		"<b>From:</b> a@example.com",
		"<b>To:</b> b@example.com",
		"———",
		"the body",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered HTML missing %q:\n%s", want, out)
		}
	}

	if strings.Index(out, "<b>Subject line</b>") > strings.Index(out, "the body") {
		t.Error("header rendered after body")
	}
}

func TestRenderTelegramHTMLEmpty(t *testing.T) {
	if out := renderTelegramHTML(nil); out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}
