package agent

import "testing"

func TestSession_ObserveCall(t *testing.T) {
	sess := NewSession("chat-1")

	if n := sess.ObserveCall("sig-a"); n != 1 {
		t.Errorf("First observation should be 1, got %d", n)
	}
	if n := sess.ObserveCall("sig-a"); n != 2 {
		t.Errorf("Second identical observation should be 2, got %d", n)
	}
	if n := sess.ObserveCall("sig-b"); n != 1 {
		t.Errorf("Distinct signature should reset to 1, got %d", n)
	}
	if n := sess.ObserveCall("sig-a"); n != 1 {
		t.Errorf("Returning to an earlier signature is still a reset, got %d", n)
	}

	sess.ObserveCall("sig-a")
	sess.ResetGuard()
	if n := sess.ObserveCall("sig-a"); n != 1 {
		t.Errorf("ResetGuard should clear the streak, got %d", n)
	}
}

func TestSession_Snippets(t *testing.T) {
	sess := NewSession("chat-1")
	sess.PushSnippet("first finding")
	sess.PushSnippet("   ")
	sess.PushSnippet("")
	sess.PushSnippet("second finding")

	if len(sess.Snippets) != 2 {
		t.Fatalf("Blank snippets should be dropped, got %d", len(sess.Snippets))
	}
	sess.ClearSnippets()
	if len(sess.Snippets) != 0 {
		t.Errorf("ClearSnippets left %d snippets", len(sess.Snippets))
	}
}

func TestSession_RememberTopic(t *testing.T) {
	sess := NewSession("chat-1")
	sess.RememberTopic("how old")
	if sess.Topic() != "" {
		t.Errorf("Short query should not become the topic, got %q", sess.Topic())
	}
	sess.RememberTopic("age of the current president of France")
	if sess.Topic() != "age of the current president of France" {
		t.Errorf("Substantial query should become the topic, got %q", sess.Topic())
	}
	sess.RememberTopic("and now")
	if sess.Topic() != "age of the current president of France" {
		t.Errorf("Short follow-up should not overwrite the topic, got %q", sess.Topic())
	}
}

func TestSession_Last(t *testing.T) {
	sess := NewSession("chat-1")
	if _, ok := sess.Last(); ok {
		t.Error("Empty history should report no last message")
	}
	sess.Append("human", "hello")
	sess.Append("ai", "hi there")
	last, ok := sess.Last()
	if !ok || last.Role != "ai" || last.Content != "hi there" {
		t.Errorf("Unexpected last message: %+v", last)
	}
}
