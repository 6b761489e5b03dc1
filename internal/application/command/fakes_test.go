package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/conversation"
	"github.com/englishprofesor/tutor-bot/internal/domain/lesson"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

var testNow = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

type memStudents struct {
	mu     sync.Mutex
	byID   map[int64]*student.Student
	nextID int64

	creates int
	saves   int

	// conflictWith simulates a concurrent insert: Create stores it and fails.
	conflictWith *student.Student
}

func newMemStudents() *memStudents {
	return &memStudents{byID: map[int64]*student.Student{}}
}

func (m *memStudents) Create(_ context.Context, s *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.conflictWith != nil {
		m.nextID++
		m.conflictWith.ID = m.nextID
		m.byID[m.conflictWith.ID] = m.conflictWith
		m.conflictWith = nil
		return student.ErrStudentAlreadyExists
	}
	for _, existing := range m.byID {
		if existing.TelegramID == s.TelegramID {
			return student.ErrStudentAlreadyExists
		}
	}
	m.nextID++
	s.ID = m.nextID
	m.byID[s.ID] = s
	return nil
}

func (m *memStudents) GetByID(_ context.Context, id int64) (*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s, nil
}

func (m *memStudents) GetByTelegramID(_ context.Context, tg student.TelegramID) (*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.TelegramID == tg {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (m *memStudents) Save(_ context.Context, s *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.byID[s.ID] = s
	return nil
}

func (m *memStudents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lessons
// ─────────────────────────────────────────────────────────────────────────────

type memLessons struct {
	mu       sync.Mutex
	lessons  []*lesson.Lesson
	messages map[int64][]*lesson.Message
	saves    int
}

func newMemLessons() *memLessons {
	return &memLessons{messages: map[int64][]*lesson.Message{}}
}

func (m *memLessons) Create(_ context.Context, l *lesson.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.lessons) + 1)
	m.lessons = append(m.lessons, l)
	return nil
}

func (m *memLessons) GetByID(_ context.Context, id int64) (*lesson.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, lesson.ErrLessonNotFound
}

func (m *memLessons) FindOpenForDay(_ context.Context, studentID int64, dayStart, dayEnd time.Time) (*lesson.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.lessons) - 1; i >= 0; i-- {
		l := m.lessons[i]
		if l.StudentID == studentID && l.IsOpen() && !l.StartedAt.Before(dayStart) && l.StartedAt.Before(dayEnd) {
			return l, nil
		}
	}
	return nil, lesson.ErrNoOpenLesson
}

func (m *memLessons) FindOpen(_ context.Context, studentID int64) (*lesson.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.lessons) - 1; i >= 0; i-- {
		if l := m.lessons[i]; l.StudentID == studentID && l.IsOpen() {
			return l, nil
		}
	}
	return nil, lesson.ErrNoOpenLesson
}

func (m *memLessons) AppendMessage(_ context.Context, l *lesson.Lesson, msg *lesson.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages[l.ID]) + 1)
	m.messages[l.ID] = append(m.messages[l.ID], msg)
	return nil
}

func (m *memLessons) Save(_ context.Context, _ *lesson.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

func (m *memLessons) ListByStudent(_ context.Context, studentID int64, limit, offset int) ([]*lesson.Lesson, error) {
	return nil, errors.New("not used")
}

func (m *memLessons) Messages(_ context.Context, lessonID int64) ([]*lesson.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[lessonID], nil
}

func (m *memLessons) CountSince(context.Context, int64, time.Time) (int, error) { return 0, nil }

func (m *memLessons) CountEndedAtLevel(context.Context, int64, int64) (int, error) { return 0, nil }

func (m *memLessons) ListStale(_ context.Context, idleCutoff, dayStart time.Time, limit int) ([]*lesson.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*lesson.Lesson
	for _, l := range m.lessons {
		if !l.IsOpen() {
			continue
		}
		last := l.StartedAt
		for _, msg := range m.messages[l.ID] {
			if msg.CreatedAt.After(last) {
				last = msg.CreatedAt
			}
		}
		if l.StartedAt.Before(dayStart) || last.Before(idleCutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversation threads
// ─────────────────────────────────────────────────────────────────────────────

type memThreads struct {
	mu      sync.Mutex
	threads map[string]*conversation.Thread
	loadErr error
}

func newMemThreads() *memThreads {
	return &memThreads{threads: map[string]*conversation.Thread{}}
}

func (m *memThreads) Load(_ context.Context, id string) (*conversation.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	t, ok := m.threads[id]
	if !ok {
		return &conversation.Thread{ID: id}, nil
	}
	cp := *t
	cp.Messages = append([]conversation.Message(nil), t.Messages...)
	return &cp, nil
}

func (m *memThreads) Append(_ context.Context, id string, msgs ...conversation.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		t = &conversation.Thread{ID: id}
		m.threads[id] = t
	}
	t.Add(msgs...)
	return nil
}

func (m *memThreads) Reset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, id)
	return nil
}

// seed puts n user/assistant exchanges into the thread.
func (m *memThreads) seed(id string, exchanges int) {
	msgs := []conversation.Message{{Role: conversation.RoleSystem, Content: "sys"}}
	for i := 0; i < exchanges; i++ {
		msgs = append(msgs,
			conversation.Message{Role: conversation.RoleUser, Content: "hi"},
			conversation.Message{Role: conversation.RoleAssistant, Content: "hello"},
		)
	}
	_ = m.Append(context.Background(), id, msgs...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Generator / speech / delivery
// ─────────────────────────────────────────────────────────────────────────────

type fakeGenerator struct {
	reply    string
	replyErr error
	eval     *lesson.Evaluation
	evalErr  error

	replyCalls   int
	evalCalls    int
	lastHistory  []conversation.Message
	lastLevel    string
	lastTranscrt string
}

func (g *fakeGenerator) Reply(_ context.Context, history []conversation.Message) (string, error) {
	g.replyCalls++
	g.lastHistory = append([]conversation.Message(nil), history...)
	if g.replyErr != nil {
		return "", g.replyErr
	}
	return g.reply, nil
}

func (g *fakeGenerator) Evaluate(_ context.Context, transcript, level string) (*lesson.Evaluation, error) {
	g.evalCalls++
	g.lastTranscrt = transcript
	g.lastLevel = level
	if g.evalErr != nil {
		return nil, g.evalErr
	}
	return g.eval, nil
}

type fakeSynth struct {
	audio []byte
	err   error
	texts []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	return f.audio, f.err
}

type recordingDelivery struct {
	texts  []string
	voices [][]byte
	err    error
}

func (d *recordingDelivery) SendText(_ context.Context, text string) error {
	if d.err != nil {
		return d.err
	}
	d.texts = append(d.texts, text)
	return nil
}

func (d *recordingDelivery) SendVoice(_ context.Context, audio []byte) error {
	d.voices = append(d.voices, audio)
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateDashboard(context.Context, int64) error {
	c.calls++
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Wiring
// ─────────────────────────────────────────────────────────────────────────────

type turnFixture struct {
	cat      *catalog.Catalog
	clock    *timeutil.FixedClock
	students *memStudents
	lessons  *memLessons
	threads  *memThreads
	gen      *fakeGenerator
	synth    *fakeSynth
	cache    *countingInvalidator
	handler  *ProcessTurnHandler
}

func newTurnFixture() *turnFixture {
	f := &turnFixture{
		cat:      catalog.Default(),
		clock:    &timeutil.FixedClock{T: testNow},
		students: newMemStudents(),
		lessons:  newMemLessons(),
		threads:  newMemThreads(),
		gen:      &fakeGenerator{reply: "Hello! ¿Cómo estás?"},
		synth:    &fakeSynth{audio: []byte("mp3")},
		cache:    &countingInvalidator{},
	}
	log := logger.Discard()
	resolver := NewResolveStudentHandler(f.students, f.cat, f.clock, log)
	f.handler = NewProcessTurnHandler(ProcessTurnDeps{
		Resolver:    resolver,
		Students:    f.students,
		Lessons:     f.lessons,
		Threads:     f.threads,
		Generator:   f.gen,
		Synthesizer: f.synth,
		Dashboards:  f.cache,
		Catalog:     f.cat,
		Clock:       f.clock,
		Logger:      log,
	})
	return f
}

func intPtr(v float64) *float64 { return &v }
