package model

import (
	"encoding/json"
	"testing"
)

func TestContentRoundTripText(t *testing.T) {
	n := Note{ID: "a", Type: TypeNote, Content: Content{Text: "hello"}}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Note
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Content.Tasks != nil {
		t.Error("expected text content, got tasks")
	}
	if got.Content.Text != "hello" {
		t.Errorf("content = %q, want %q", got.Content.Text, "hello")
	}
}

func TestContentRoundTripTasklist(t *testing.T) {
	n := Note{
		ID:   "b",
		Type: TypeTasklist,
		Content: Content{Tasks: []TaskItem{
			{Checked: true, Content: "milk"},
			{Checked: false, Content: "eggs"},
		}},
	}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Note
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Content.Tasks == nil {
		t.Fatal("expected task content")
	}
	if len(got.Content.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(got.Content.Tasks))
	}
	if !got.Content.Tasks[0].Checked || got.Content.Tasks[0].Content != "milk" {
		t.Errorf("tasks[0] = %+v", got.Content.Tasks[0])
	}
}

func TestContentUnmarshalWireForms(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`"plain text"`), &c); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if c.Text != "plain text" || c.Tasks != nil {
		t.Errorf("got %+v", c)
	}

	if err := json.Unmarshal([]byte(`[{"checked":false,"content":"x"}]`), &c); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if c.Tasks == nil || len(c.Tasks) != 1 {
		t.Errorf("got %+v", c)
	}

	if err := json.Unmarshal([]byte(`null`), &c); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if c.Text != "" || c.Tasks != nil {
		t.Errorf("got %+v", c)
	}
}

func TestEqualContent(t *testing.T) {
	ts := int64(100)
	a := &Note{ID: "x", Type: TypeNote, Title: "t", Content: Content{Text: "body"}, Updated: 1}
	b := &Note{ID: "x", Type: TypeNote, Title: "t", Content: Content{Text: "body"}, Updated: 999}

	if !a.EqualContent(b) {
		t.Error("identical user-visible fields should compare equal regardless of timestamps")
	}

	b.Content.Text = "other"
	if a.EqualContent(b) {
		t.Error("different content should not compare equal")
	}

	b.Content.Text = "body"
	b.Deleted = &ts
	if a.EqualContent(b) {
		t.Error("different deletion state should not compare equal")
	}

	a.Deleted = &ts
	if !a.EqualContent(b) {
		t.Error("matching tombstones should compare equal")
	}

	b.Reminder = &Reminder{Enabled: true, Date: "2026-01-01"}
	if a.EqualContent(b) {
		t.Error("reminder mismatch should not compare equal")
	}
}

func TestCloneIsDeep(t *testing.T) {
	ts := int64(5)
	n := &Note{
		ID:       "x",
		Type:     TypeTasklist,
		Content:  Content{Tasks: []TaskItem{{Content: "a"}}},
		Reminder: &Reminder{Enabled: true},
		Deleted:  &ts,
	}

	c := n.Clone()
	c.Content.Tasks[0].Content = "changed"
	c.Reminder.Enabled = false
	*c.Deleted = 99

	if n.Content.Tasks[0].Content != "a" {
		t.Error("clone shares task slice")
	}
	if !n.Reminder.Enabled {
		t.Error("clone shares reminder pointer")
	}
	if *n.Deleted != 5 {
		t.Error("clone shares deleted pointer")
	}
}

func TestReserved(t *testing.T) {
	if !Reserved(MetaID) || !Reserved(DraftID) {
		t.Error("meta and draft are reserved")
	}
	if Reserved("id_123") {
		t.Error("ordinary ids are not reserved")
	}
}
