package dsl_test

import (
	"strings"
	"testing"

	"github.com/ByLCY/rotulus/dsl"
)

const sampleDSL = `
prompter Newsroom v1 {
  meta {
    title: "Evening bulletin"
    keywords: [
      "news"
      "live"
    ]
  }

  resources {
    font Body {
      src: "embed:GoRegular"
      bold-src: "embed:GoBold"
    }

    audio main {
      src: "voice.wav"
    }

    color Accent = #FF3B30
  }

  scene 16:9 {
    font Body size 48px align center
    scroll speed 50

    script {
      "Good evening, ${presenter.name}."
      ""
      "Tonight's **headlines** follow."
    }

    ticker text "Breaking: markets close higher" speed 120 size 28px
    export fps 30 mute true name "bulletin"
  }
}
`

func TestParseDocument(t *testing.T) {
	doc, err := dsl.ParseString(sampleDSL)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Name != "Newsroom" {
		t.Fatalf("expected document name Newsroom, got %s", doc.Name)
	}
	if doc.Version != "v1" {
		t.Fatalf("expected version v1, got %s", doc.Version)
	}

	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(doc.Sections))
	}

	meta := doc.Sections[0].Meta
	if meta == nil {
		t.Fatalf("meta section missing")
	}
	title := meta.Block.Statements[0].Assignment
	if title == nil || title.Key != "title" {
		t.Fatalf("expected title assignment, got %+v", meta.Block.Statements[0])
	}
	if got := string(*title.Value.String); got != "Evening bulletin" {
		t.Fatalf("expected title, got %s", got)
	}
	keywords := meta.Block.Statements[1].Assignment
	if keywords == nil || keywords.Value.Array == nil || len(keywords.Value.Array.Values) != 2 {
		t.Fatalf("expected 2-element keywords array, got %+v", keywords)
	}

	scene := doc.Sections[2].Scene
	if scene == nil {
		t.Fatalf("scene section missing")
	}
	if scene.Spec.Aspect != "16:9" {
		t.Fatalf("expected aspect 16:9, got %s", scene.Spec.Aspect)
	}

	fontCmd := scene.Block.Statements[0].Command
	if fontCmd == nil || fontCmd.Name != "font" {
		t.Fatalf("expected font command, got %+v", scene.Block.Statements[0])
	}
	if len(fontCmd.Args) < 3 || fontCmd.Args[0].Value != "Body" {
		t.Fatalf("unexpected font args: %+v", fontCmd.Args)
	}

	var scriptCmd *dsl.Command
	for _, st := range scene.Block.Statements {
		if st.Command != nil && st.Command.Name == "script" {
			scriptCmd = st.Command
		}
	}
	if scriptCmd == nil || scriptCmd.Block == nil {
		t.Fatalf("script command missing")
	}
	if len(scriptCmd.Block.Statements) != 3 {
		t.Fatalf("expected 3 script lines, got %d", len(scriptCmd.Block.Statements))
	}
	if scriptCmd.Block.Statements[1].Text == nil || string(scriptCmd.Block.Statements[1].Text.Value) != "" {
		t.Fatalf("expected blank middle script line")
	}
	if got := string(scriptCmd.Block.Statements[0].Text.Value); !strings.Contains(got, "${presenter.name}") {
		t.Fatalf("expected interpolation placeholder, got %s", got)
	}
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	if _, err := dsl.ParseString(`prompter Broken v1 { scene { } }`); err == nil {
		t.Fatalf("expected parse error for missing aspect ratio")
	}
}
