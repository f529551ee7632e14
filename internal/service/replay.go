package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/domain"
)

// ErrQuestionPending is returned when a question is loaded while the previous
// one has not been answered.
var ErrQuestionPending = errors.New("question pending")

// ReplayConfig tunes one comparison session.
type ReplayConfig struct {
	MaxQuestions int
	TickLength   time.Duration
	Options      domain.LaunchOptions
}

// SessionSnapshot is a point-in-time view of the session for the host.
type SessionSnapshot struct {
	SessionID      string               `json:"session_id"`
	Status         domain.SessionStatus `json:"status"`
	QuestionID     domain.QuestionID    `json:"question_id,omitzero"`
	QuestionsUsed  int                  `json:"questions_used"`
	MaxQuestions   int                  `json:"max_questions"`
	PendingAnswers int                  `json:"pending_answers"`
	TimerStarted   bool                 `json:"timer_started"`
	Lanes          []LaneState          `json:"lanes,omitempty"`
}

// ReplayManager sequences a whole session: it wires the timer, question and
// answer managers and the lanes together and walks question by question
// until the quota is answered.
type ReplayManager struct {
	session   *Session
	cfg       ReplayConfig
	sims      *SimulationSet
	timer     *Timer
	games     *GameManager
	queries   *QueryManager
	answers   *AnswerManager
	view      ViewSink
	navigator Navigator

	// selecting admits one selection at a time; extra input is dropped.
	selecting sync.Mutex

	mu         sync.Mutex
	status     domain.SessionStatus
	questionID domain.QuestionID
}

// NewReplayManager creates the session components and starts constructing
// the lane simulations in the background. Nil view or navigator discard
// their updates.
func NewReplayManager(ctx context.Context, session *Session, factory sim.Factory, transport Transport, view ViewSink, navigator Navigator, cfg ReplayConfig) *ReplayManager {
	if view == nil {
		view = nopView{}
	}
	if navigator == nil {
		navigator = nopView{}
	}
	if session == nil {
		session = NewSession(nil)
	}

	sims := ConstructSimulations(ctx, factory, sim.Merge(sim.DefaultOptions(), cfg.Options.Sim))
	timer := NewTimer(session.Clock)
	return &ReplayManager{
		session:   session,
		cfg:       cfg,
		sims:      sims,
		timer:     timer,
		games:     NewGameManager(sims, timer, view, cfg.TickLength),
		queries:   NewQueryManager(transport),
		answers:   NewAnswerManager(transport),
		view:      view,
		navigator: navigator,
		status:    domain.SessionStatusAwaitingQuestion,
	}
}

// Games returns the lane manager.
func (r *ReplayManager) Games() *GameManager { return r.games }

// Timer returns the response timer.
func (r *ReplayManager) Timer() *Timer { return r.timer }

// Answers returns the answer manager.
func (r *ReplayManager) Answers() *AnswerManager { return r.answers }

// Queries returns the question manager.
func (r *ReplayManager) Queries() *QueryManager { return r.queries }

// Start waits for the simulations and the first question, fetched
// concurrently, then loads the question into the lanes. Selections and
// retries are ignored until it returns.
func (r *ReplayManager) Start(ctx context.Context) error {
	r.selecting.Lock()
	defer r.selecting.Unlock()

	if _, pending := r.answers.PendingID(); pending {
		return nil
	}

	var first *domain.Question

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Canvases are mounted even if the question fetch fails, so a retry
		// only has to load the question.
		sims, err := r.sims.Wait(ctx)
		if err != nil {
			return err
		}
		for i, s := range sims {
			r.view.SetCanvas(domain.Sides[i], s.Canvas())
		}
		return nil
	})
	g.Go(func() error {
		q, err := r.firstQuestion(gctx)
		if err != nil {
			return err
		}
		first = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	log.Printf("Session %s started (max questions: %d)", r.session.ID, r.cfg.MaxQuestions)
	return r.loadQuestion(ctx, first)
}

func (r *ReplayManager) firstQuestion(ctx context.Context) (*domain.Question, error) {
	if name := r.cfg.Options.QuestionName; name != "" {
		return r.queries.RequestQuestionByName(ctx, name)
	}
	return r.queries.RequestRandomQuestion(ctx, r.cfg.Options.Filter)
}

// Run drives the playback tick until ctx is done.
func (r *ReplayManager) Run(ctx context.Context) {
	r.games.Run(ctx)
}

// loadQuestion decodes the question and resets both lanes to it. Questions
// that arrive after the session completed are discarded. A question arriving
// while another one still waits for its answer is refused.
func (r *ReplayManager) loadQuestion(ctx context.Context, q *domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == domain.SessionStatusComplete {
		log.Printf("Discarding question %s received after session %s completed", q.ID, r.session.ID)
		return nil
	}
	if pendingID, pending := r.answers.PendingID(); pending {
		return fmt.Errorf("%w: question %s still waits for an answer, refusing %s", ErrQuestionPending, pendingID, q.ID)
	}

	trajs, err := q.Trajectories()
	if err != nil {
		return fmt.Errorf("failed to decode question: %w", err)
	}
	if err := r.games.SetTrajectories(ctx, trajs); err != nil {
		return fmt.Errorf("failed to load question %s: %w", q.ID, err)
	}

	r.answers.SetQuestionID(q.ID)
	r.questionID = q.ID
	r.status = domain.SessionStatusActive

	// A lane with nothing to play cannot start the timer itself.
	if trajs[0].Len() == 0 || trajs[1].Len() == 0 {
		r.timer.Start()
	}

	r.view.SetProgressText(fmt.Sprintf("%d/%d", r.queries.NQuestionsUsed(), r.cfg.MaxQuestions))
	return nil
}

// Control applies a playback action to the given lanes in order.
func (r *ReplayManager) Control(ctx context.Context, action domain.LaneAction, sides ...domain.Side) error {
	var fn func(context.Context, domain.Side) error
	switch action {
	case domain.LaneActionPlay:
		fn = r.games.Play
	case domain.LaneActionPause:
		fn = r.games.Pause
	case domain.LaneActionRestart:
		fn = r.games.Restart
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownLaneAction, action)
	}
	for _, side := range sides {
		if err := fn(ctx, side); err != nil {
			return err
		}
	}
	return nil
}

// Select records the viewer's preferred side for the current question and
// moves on. It is a no-op when nothing was played yet, when no question is
// pending, when the session is over, or while another selection is in flight.
func (r *ReplayManager) Select(ctx context.Context, side domain.Side) error {
	if !r.selecting.TryLock() {
		return nil
	}
	defer r.selecting.Unlock()

	if r.Status().Status == domain.SessionStatusComplete {
		return nil
	}
	questionID, pending := r.answers.PendingID()
	if !pending {
		return nil
	}

	r.timer.Stop()
	if !r.timer.Started() {
		return nil
	}

	maxSteps, err := r.games.MaxSteps(ctx)
	if err != nil {
		return fmt.Errorf("failed to read lane progress: %w", err)
	}
	r.answers.AddAnswer(side, r.timer, maxSteps)
	r.timer.Reset()
	log.Printf("Recorded answer %s for question %s (max steps %v)", side, questionID, maxSteps)

	if r.queries.NQuestionsUsed() >= r.cfg.MaxQuestions {
		return r.finish(ctx)
	}
	return r.nextQuestion(ctx)
}

// NextQuestion fetches and loads a new question when none is pending, for
// example after a failed fetch. It does nothing otherwise.
func (r *ReplayManager) NextQuestion(ctx context.Context) error {
	if !r.selecting.TryLock() {
		return nil
	}
	defer r.selecting.Unlock()

	if r.Status().Status == domain.SessionStatusComplete {
		return nil
	}
	if _, pending := r.answers.PendingID(); pending {
		return nil
	}
	if r.queries.NQuestionsUsed() >= r.cfg.MaxQuestions {
		return r.finish(ctx)
	}
	return r.nextQuestion(ctx)
}

func (r *ReplayManager) nextQuestion(ctx context.Context) error {
	q, err := r.queries.RequestRandomQuestion(ctx, r.cfg.Options.Filter)
	if err != nil {
		return err
	}
	return r.loadQuestion(ctx, q)
}

// finish flushes every answer and ends the session. The session ends even if
// the flush fails, since the batch is gone either way.
func (r *ReplayManager) finish(ctx context.Context) error {
	flushErr := r.answers.SubmitAnswers(ctx)

	r.mu.Lock()
	r.status = domain.SessionStatusComplete
	r.mu.Unlock()

	log.Printf("Session %s complete", r.session.ID)
	r.navigator.Navigate(domain.GoodbyeRoute)

	if flushErr != nil {
		return fmt.Errorf("failed to flush answers at session end: %w", flushErr)
	}
	return nil
}

// HandleVisibilityChange flushes all answers when the host becomes hidden,
// returning only once the submission finished.
func (r *ReplayManager) HandleVisibilityChange(ctx context.Context, state domain.VisibilityState) error {
	if state != domain.VisibilityHidden {
		return nil
	}
	if err := r.answers.SubmitAnswers(ctx); err != nil {
		log.Printf("WARN: flush on hide failed for session %s: %v", r.session.ID, err)
		return err
	}
	return nil
}

// Close treats shutdown like the host going away for good: it flushes the
// answers and marks the session complete.
func (r *ReplayManager) Close(ctx context.Context) error {
	r.mu.Lock()
	r.status = domain.SessionStatusComplete
	r.mu.Unlock()

	if err := r.answers.SubmitAnswers(ctx); err != nil {
		return fmt.Errorf("failed to flush answers on close: %w", err)
	}
	return nil
}

// Status returns a snapshot of the session.
func (r *ReplayManager) Status() SessionSnapshot {
	r.mu.Lock()
	status := r.status
	questionID := r.questionID
	r.mu.Unlock()

	return SessionSnapshot{
		SessionID:      r.session.ID,
		Status:         status,
		QuestionID:     questionID,
		QuestionsUsed:  r.queries.NQuestionsUsed(),
		MaxQuestions:   r.cfg.MaxQuestions,
		PendingAnswers: len(r.answers.Answers()),
		TimerStarted:   r.timer.Started(),
		Lanes:          r.games.Lanes(),
	}
}
