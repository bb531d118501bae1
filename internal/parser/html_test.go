package parser

import (
	"strings"
	"testing"
)

func TestStripHTMLEmpty(t *testing.T) {
	if got := StripHTML(""); got != "" {
		t.Errorf("StripHTML(\"\") = %q", got)
	}
}

func TestStripHTMLParagraphs(t *testing.T) {
	got := StripHTML("<html><body><p>Hello</p><p>World</p></body></html>")
	if !strings.Contains(got, "Hello") || !strings.Contains(got, "World") {
		t.Fatalf("StripHTML = %q", got)
	}
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("tags left behind: %q", got)
	}
	if !strings.Contains(got, "\n") {
		t.Errorf("paragraphs not separated by newlines: %q", got)
	}
}

func TestStripHTMLDropsScriptAndStyle(t *testing.T) {
	got := StripHTML(`<style>.x{color:red}</style><script>alert("hi")</script><p>Visible</p>`)
	if strings.Contains(got, "alert") || strings.Contains(got, "color") {
		t.Errorf("script/style content survived: %q", got)
	}
	if !strings.Contains(got, "Visible") {
		t.Errorf("visible text lost: %q", got)
	}
}

func TestStripHTMLDecodesEntities(t *testing.T) {
	got := StripHTML("<p>Tom &amp; Jerry &lt;tj&gt;</p>")
	if !strings.Contains(got, "Tom & Jerry <tj>") {
		t.Errorf("entities not decoded: %q", got)
	}
}

func TestStripHTMLListBullets(t *testing.T) {
	got := StripHTML("<ul><li>first</li><li>second</li></ul>")
	if !strings.Contains(got, "• first") || !strings.Contains(got, "• second") {
		t.Errorf("list items not bulleted: %q", got)
	}
}

func TestStripHTMLCollapsesNewlines(t *testing.T) {
	got := StripHTML("<div>a</div><br><br><br><br><div>b</div>")
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("newlines not collapsed: %q", got)
	}
	if !strings.Contains(got, "a") || !strings.Contains(got, "b") {
		t.Errorf("content lost: %q", got)
	}
}

func TestStripHTMLTrims(t *testing.T) {
	got := StripHTML("<br><br><p>  padded  </p><br>")
	if got != strings.TrimSpace(got) {
		t.Errorf("result not trimmed: %q", got)
	}
}
