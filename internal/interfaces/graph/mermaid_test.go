package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

func TestGenerateMermaid(t *testing.T) {
	b := domainwf.NewBuilder("Review")
	b.State("draft", "Draft").Initial()
	b.State("in-review", "In \"Review\"")
	b.State("approved", "Approved").Final()
	b.State("archived", "Archived").Disabled()
	b.Action("submit", "Submit").From("draft").To("in-review")
	b.Action("approve", "Approve").From("in-review").To("approved")
	b.Action("reopen", "Reopen").From("in-review", "approved").To("draft").Disabled()

	want := `graph TD
    draft(("Draft"))
    in_review["In 'Review'"]
    approved((("Approved")))
    archived["Archived"]
    draft -- "Submit" --> in_review
    in_review -- "Approve" --> approved
    in_review -. "Reopen" .-> draft
    approved -. "Reopen" .-> draft
    classDef disabled stroke-dasharray: 5 5,opacity:0.5
    class archived disabled
`
	assert.Equal(t, want, GenerateMermaid(b.Build()))
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeID("a-b.c"))
	assert.Equal(t, "_", sanitizeID(""))
	assert.Equal(t, "State_1", sanitizeID("State_1"))
}
