package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldEvaluate_Cadence(t *testing.T) {
	for n, want := range map[int]bool{0: false, 4: false, 5: true, 6: false, 10: true, 15: true, 16: false} {
		assert.Equal(t, want, ShouldEvaluate(n), "count=%d", n)
	}
}

func TestCountUserMessages(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hola"},
		{Role: RoleAssistant, Content: "Hello!"},
		{Role: RoleUser, Content: "bien"},
	}
	assert.Equal(t, 2, CountUserMessages(msgs))
	assert.True(t, HasSystem(msgs))
	assert.False(t, HasSystem(msgs[1:]))
}

func TestTranscript_LastWindow(t *testing.T) {
	msgs := []Message{{Role: RoleSystem, Content: "sys"}}
	for i := 1; i <= 6; i++ {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: fmt.Sprintf("u%d", i)},
			Message{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}

	got := Transcript(msgs, 4)

	assert.Equal(t, "Usuario: u5\nTutor: a5\nUsuario: u6\nTutor: a6", got)
	assert.NotContains(t, Transcript(msgs, 0), "sys")
}

func TestTrim_KeepsSystem(t *testing.T) {
	msgs := []Message{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 5; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprint(i)})
	}

	out := Trim(msgs, 2)

	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "3"},
		{Role: RoleUser, Content: "4"},
	}, out)
	assert.Len(t, Trim(msgs, 10), 6)
}

func TestThreadID(t *testing.T) {
	assert.Equal(t, "student_123", ThreadID(123))
}

func TestThread_AddCountsUsers(t *testing.T) {
	th := &Thread{ID: "student_1"}
	th.Add(Message{Role: RoleSystem}, Message{Role: RoleUser}, Message{Role: RoleAssistant}, Message{Role: RoleUser})

	assert.Equal(t, 2, th.UserMessages)
	assert.Len(t, th.Messages, 4)
}
