package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/document"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
	"github.com/webmasters-learning/receipt-desk/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Exporter renders a receipt in two phases joined by Finalize.
type Exporter interface {
	LoadAsset(ctx context.Context) <-chan document.AssetResult
	Build(form receipt.Form) (*document.Draft, error)
	Finalize(ctx context.Context, d *document.Draft, assets <-chan document.AssetResult) (*document.Document, error)
}

var _ Exporter = (*document.Exporter)(nil)

// KeyFunc derives the storage key for a saved receipt.
type KeyFunc func(recordID, studentName string, at time.Time) string

// Dependencies are shared by every session of a Manager.
type Dependencies struct {
	Source   student.Source
	Exporter Exporter

	// Store and Archive are optional. Without them a receipt is only
	// returned to the caller.
	Store   receipt.Store
	Archive receipt.Archive
	Keys    KeyFunc

	Dates  timeutil.DateFormatter
	Clock  timeutil.Clock
	Logger *logger.Logger
}

func (d *Dependencies) withDefaults() {
	if d.Dates.Layout == "" {
		d.Dates = timeutil.NewDateFormatter(nil, "", nil)
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock
	}
	if d.Keys == nil {
		d.Keys = func(id, _ string, at time.Time) string {
			return at.UTC().Format("2006/01/02") + "/" + id + ".pdf"
		}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is one operator's receipt form. It is safe for concurrent use;
// remote calls run without holding the lock.
type Session struct {
	id        string
	createdAt time.Time
	deps      *Dependencies
	log       *logger.Logger

	mu          sync.Mutex
	lastActive  time.Time
	loadStarted bool
	loading     bool
	directory   []student.Summary
	selectSeq   uint64
	selectedID  string
	detail      *student.Detail
	form        receipt.Form
	notice      *Notice
	exportState receipt.ExportState
	lastReceipt *receipt.Record
}

func newSession(id string, deps *Dependencies) *Session {
	now := deps.Clock()
	return &Session{
		id:          id,
		createdAt:   now,
		lastActive:  now,
		deps:        deps,
		log:         deps.Logger.With(logger.SessionID(id)),
		form:        receipt.NewForm(deps.Dates.Today()),
		exportState: receipt.ExportIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = s.deps.Clock()
}

// LoadDirectory fetches the student listing. It runs at most once per
// session; later calls are no-ops. On failure the listing stays empty and
// the notice is set.
func (s *Session) LoadDirectory(ctx context.Context) error {
	s.mu.Lock()
	if s.loadStarted {
		s.mu.Unlock()
		return nil
	}
	s.loadStarted = true
	s.loading = true
	s.touch()
	s.mu.Unlock()

	list, err := s.deps.Source.ListStudents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.directory = nil
		s.notice = &Notice{Kind: NoticeDirectoryLoad, Message: MsgDirectoryLoad}
		s.log.Warn("directory load failed", logger.Err(err))
		return err
	}
	s.directory = list
	s.log.Debug("directory loaded", logger.Int("students", len(list)))
	return nil
}

// Select fetches a student's record and replaces the form with it. An
// empty id does nothing. On failure the form and the current selection are left
// exactly as they were. When selections overlap only the latest one is
// applied.
func (s *Session) Select(ctx context.Context, id string) error {
	if !student.HasID(id) {
		return nil
	}

	s.mu.Lock()
	s.selectSeq++
	seq := s.selectSeq
	s.touch()
	s.mu.Unlock()

	detail, err := s.deps.Source.GetStudent(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.selectSeq {
		s.log.Debug("discarding superseded selection", logger.StudentID(id))
		return nil
	}
	if err != nil {
		s.notice = &Notice{Kind: NoticeDetailFetch, Message: MsgDetailFetch}
		s.log.Warn("detail fetch failed", logger.StudentID(id), logger.Err(err))
		return err
	}

	s.selectedID = id
	s.detail = detail
	s.form = receipt.FromDetail(*detail, s.deps.Dates.Today())
	if s.notice != nil && s.notice.Kind == NoticeDetailFetch {
		s.notice = nil
	}
	return nil
}

// UpdateField replaces one field of the form.
func (s *Session) UpdateField(field receipt.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, err := s.form.With(field, value)
	if err != nil {
		return err
	}
	s.form = form
	s.touch()
	return nil
}

// UpdateFields applies several edits at once. Names are checked first so
// either every edit is applied or none is.
func (s *Session) UpdateFields(values map[string]string) error {
	parsed := make(map[receipt.Field]string, len(values))
	for name, v := range values {
		f, err := receipt.ParseField(name)
		if err != nil {
			return err
		}
		parsed[f] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	form := s.form
	for f, v := range parsed {
		var err error
		if form, err = form.With(f, v); err != nil {
			return err
		}
	}
	s.form = form
	s.touch()
	return nil
}

// Validate checks the form. It sets the notice when the student name or
// email is missing and clears any notice otherwise.
func (s *Session) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.validateLocked() == nil
}

func (s *Session) validateLocked() error {
	if err := s.form.Validate(); err != nil {
		s.notice = &Notice{Kind: NoticeValidation, Message: MsgValidation}
		return err
	}
	s.notice = nil
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

// Export validates the form, renders the receipt and saves it. Nothing is
// stored or archived unless the document was finalized.
func (s *Session) Export(ctx context.Context) (*document.Document, *receipt.Record, error) {
	s.mu.Lock()
	if s.exportState.InProgress() {
		s.mu.Unlock()
		return nil, nil, shared.ErrExportInProgress
	}
	s.setExportLocked(receipt.ExportValidating)
	s.touch()
	if err := s.validateLocked(); err != nil {
		s.setExportLocked(receipt.ExportIdle)
		s.mu.Unlock()
		return nil, nil, err
	}
	s.setExportLocked(receipt.ExportBuilding)
	form := s.form
	studentID := s.selectedID
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	assets := s.deps.Exporter.LoadAsset(ctx)
	draft, err := s.deps.Exporter.Build(form)
	if err != nil {
		return nil, nil, s.failExport(fmt.Errorf("build receipt: %w", err))
	}

	s.mu.Lock()
	s.setExportLocked(receipt.ExportWaitingForAsset)
	s.mu.Unlock()

	doc, err := s.deps.Exporter.Finalize(ctx, draft, assets)
	if err != nil {
		return nil, nil, s.failExport(err)
	}

	rec, err := s.save(ctx, form, studentID, doc)
	if err != nil {
		return nil, nil, s.failExport(err)
	}

	s.mu.Lock()
	s.setExportLocked(receipt.ExportSaved)
	s.lastReceipt = rec
	s.mu.Unlock()

	s.log.Info("receipt saved",
		logger.Filename(doc.Filename),
		logger.StudentID(studentID),
		logger.Bool("signed", doc.Signed),
	)
	return doc, rec, nil
}

func (s *Session) save(ctx context.Context, form receipt.Form, studentID string, doc *document.Document) (*receipt.Record, error) {
	now := s.deps.Clock()
	rec := &receipt.Record{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		StudentID:   studentID,
		StudentName: form.StudentName,
		Email:       form.Email,
		Fees:        form.Fees,
		Filename:    doc.Filename,
		SizeBytes:   len(doc.Data),
		SignedWith:  doc.Signed,
		CreatedAt:   now.UTC(),
	}

	if s.deps.Store != nil {
		loc, err := s.deps.Store.Put(ctx, s.deps.Keys(rec.ID, form.StudentName, now), doc.Data)
		if err != nil {
			return nil, fmt.Errorf("store receipt: %w", err)
		}
		rec.Location = loc
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("archive receipt: %w", err)
		}
	}
	return rec, nil
}

func (s *Session) failExport(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setExportLocked(receipt.ExportFailed)
	s.notice = exportNotice(err)
	s.log.Error("receipt export failed", logger.Err(err))
	return err
}

func (s *Session) setExportLocked(next receipt.ExportState) {
	state, err := s.exportState.Transition(next)
	if err != nil {
		s.log.Error("unexpected export transition", logger.Err(err))
		state = next
	}
	s.exportState = state
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID          string              `json:"id"`
	Directory   []student.Summary   `json:"directory"`
	Loading     bool                `json:"loading"`
	SelectedID  string              `json:"selectedId,omitempty"`
	Detail      *student.Detail     `json:"detail,omitempty"`
	Form        receipt.Form        `json:"form"`
	Filename    string              `json:"filename"`
	Notice      *Notice             `json:"notice,omitempty"`
	ExportState receipt.ExportState `json:"exportState"`
	LastReceipt *receipt.Record     `json:"lastReceipt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	LastActive  time.Time           `json:"lastActive"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := make([]student.Summary, len(s.directory))
	copy(dir, s.directory)

	snap := Snapshot{
		ID:          s.id,
		Directory:   dir,
		Loading:     s.loading,
		SelectedID:  s.selectedID,
		Form:        s.form,
		Filename:    s.form.Filename(),
		ExportState: s.exportState,
		CreatedAt:   s.createdAt,
		LastActive:  s.lastActive,
	}
	if s.detail != nil {
		d := *s.detail
		snap.Detail = &d
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	if s.lastReceipt != nil {
		r := *s.lastReceipt
		snap.LastReceipt = &r
	}
	return snap
}

// Form returns a copy of the current form.
func (s *Session) Form() receipt.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Notice returns the current notice, if any.
func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// Directory returns a copy of the loaded listing.
func (s *Session) Directory() student.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(student.Directory, len(s.directory))
	copy(out, s.directory)
	return out
}
