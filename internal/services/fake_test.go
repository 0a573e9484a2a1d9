package services

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pandeptwidyaop/xwhep-remote/internal/archive"
	"github.com/pandeptwidyaop/xwhep-remote/internal/cache"
	"github.com/pandeptwidyaop/xwhep-remote/internal/codec"
	"github.com/pandeptwidyaop/xwhep-remote/internal/database"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// fakeResult is attached to a work when its script reaches COMPLETED.
type fakeResult struct {
	name    string
	typ     string
	content []byte
}

// fakeServer is an in-memory XWHEP service implementing Transport.
type fakeServer struct {
	mu sync.Mutex

	codec   codec.XML
	docs    map[string]*models.Document
	content map[string][]byte
	raw     map[string][]byte
	sent    []*models.Document

	fetches  int
	listings int

	// listStarted is signalled and listGate awaited before a listing answers.
	listStarted chan struct{}
	listGate    chan struct{}

	// pendingOnCreate makes the first save of a work default to PENDING.
	pendingOnCreate bool
	// script is the status sequence a work walks through, one step per fetch,
	// once it has left UNAVAILABLE.
	script []models.WorkStatus
	// result is attached to a work reaching COMPLETED through the script.
	result *fakeResult
	// holdData keeps uploaded data UNAVAILABLE.
	holdData bool

	fetchErr  error
	uploadErr error
	// rejectSend makes sends of a kind answer with an xmlrpcresult message.
	rejectSend map[models.Kind]string
	// failFetchAfter makes fetches fail once this many succeeded (0 = never).
	failFetchAfter int

	progress map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		docs:     make(map[string]*models.Document),
		content:  make(map[string][]byte),
		raw:      make(map[string][]byte),
		progress: make(map[string]int),
	}
}

func (f *fakeServer) FetchEntity(ctx context.Context, uid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.failFetchAfter > 0 && f.fetches > f.failFetchAfter {
		return nil, errors.New("connection reset by peer")
	}
	if raw, ok := f.raw[uid]; ok {
		return raw, nil
	}

	doc, ok := f.docs[uid]
	if !ok {
		return []byte("<xwhep></xwhep>"), nil
	}
	if doc.Kind == models.KindWork {
		f.advance(doc)
	}

	raw, err := f.codec.Encode(doc)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("<xwhep>"), raw...), []byte("</xwhep>")...), nil
}

func (f *fakeServer) advance(doc *models.Document) {
	if doc.Value("status") == string(models.WorkUnavailable) {
		return
	}
	uid := doc.UID()
	step := f.progress[uid]
	if step >= len(f.script) {
		return
	}
	f.progress[uid] = step + 1

	status := f.script[step]
	doc.Set("status", string(status))
	if status == models.WorkCompleted && f.result != nil {
		dataUID := uuid.New().String()
		uri := "xw://fake.example.org/" + dataUID
		f.docs[dataUID] = models.NewDocument(models.KindData,
			models.Field{Name: "uid", Value: dataUID},
			models.Field{Name: "name", Value: f.result.name},
			models.Field{Name: "type", Value: f.result.typ},
			models.Field{Name: "status", Value: string(models.DataAvailable)},
			models.Field{Name: "uri", Value: uri},
		)
		f.content[dataUID] = f.result.content
		doc.Set("resulturi", uri)
	}
	if status == models.WorkError {
		doc.Set("errormsg", "exit status 1")
	}
}

func (f *fakeServer) SendEntity(ctx context.Context, kind models.Kind, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := f.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if doc.Kind != kind {
		return nil, fmt.Errorf("sent %s to the %s endpoint", doc.Kind, kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, doc.Clone())
	if msg, ok := f.rejectSend[kind]; ok {
		return []byte(`<xmlrpcresult RESULTCODE="ERROR" MESSAGE="` + msg + `"/>`), nil
	}
	if _, exists := f.docs[doc.UID()]; !exists && kind == models.KindWork && f.pendingOnCreate {
		doc.Set("status", string(models.WorkPending))
	}
	f.docs[doc.UID()] = doc
	return []byte("<xwhep/>"), nil
}

func (f *fakeServer) UploadBytes(ctx context.Context, uid string, r io.Reader, md5sum string, size int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return f.uploadErr
	}
	sum := md5.Sum(b) //nolint:gosec
	if int64(len(b)) != size || hex.EncodeToString(sum[:]) != md5sum {
		return errors.New("fingerprint mismatch")
	}
	doc, ok := f.docs[uid]
	if !ok || doc.Kind != models.KindData {
		return fmt.Errorf("no data %s", uid)
	}

	f.content[uid] = b
	doc.Set("md5", md5sum)
	doc.Set("size", fmt.Sprint(size))
	if !f.holdData {
		doc.Set("status", string(models.DataAvailable))
		doc.Set("uri", "xw://fake.example.org/"+uid)
	}
	return nil
}

func (f *fakeServer) DownloadBytes(ctx context.Context, uri string, w io.Writer) (int64, error) {
	f.mu.Lock()
	b, ok := f.content[uidFromURI(uri)]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no content behind %s", uri)
	}
	return io.Copy(w, bytes.NewReader(b))
}

func (f *fakeServer) ListApplications(ctx context.Context) ([]byte, error) {
	if f.listGate != nil {
		select {
		case f.listStarted <- struct{}{}:
		default:
		}
		select {
		case <-f.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.listings++
	var uids []string
	for uid, doc := range f.docs {
		if doc.Kind == models.KindApp {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)

	var buf bytes.Buffer
	buf.WriteString("<xwhep><XMLVector>")
	for _, uid := range uids {
		fmt.Fprintf(&buf, `<XMLVALUE value="%s"/>`, uid)
	}
	buf.WriteString("</XMLVector></xwhep>")
	return buf.Bytes(), nil
}

func (f *fakeServer) RemoveEntity(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.docs[uid]; !ok {
		return fmt.Errorf("no entity %s", uid)
	}
	delete(f.docs, uid)
	return nil
}

func (f *fakeServer) DownloadURL(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	return io.Copy(w, bytes.NewReader([]byte("#!/bin/sh\necho remote\n")))
}

// helpers

func (f *fakeServer) seedApp(name string) string {
	uid := uuid.New().String()
	f.mu.Lock()
	f.docs[uid] = models.NewApplicationDocument(uid, name)
	f.mu.Unlock()
	return uid
}

func (f *fakeServer) seedWork(status models.WorkStatus) string {
	uid := uuid.New().String()
	doc := models.NewWorkDocument(uid, "app-uid", "")
	doc.Set("status", string(status))
	f.mu.Lock()
	f.docs[uid] = doc
	f.mu.Unlock()
	return uid
}

func (f *fakeServer) doc(uid string) *models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[uid]; ok {
		return d.Clone()
	}
	return nil
}

func (f *fakeServer) listingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listings
}

func (f *fakeServer) count(kind models.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.docs {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeServer) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeServer) sentDocs(kind models.Kind) []*models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for _, d := range f.sent {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func testOptions(t *testing.T) Options {
	return Options{
		PollInterval:     10 * time.Millisecond,
		DataPollInterval: 5 * time.Millisecond,
		DataWaitTimeout:  200 * time.Millisecond,
		ResultDir:        t.TempDir(),
		StagingDir:       t.TempDir(),
	}
}

func setupJournal(t *testing.T) *JournalService {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return NewJournalService(db)
}

func newTestOrchestrator(t *testing.T, f *fakeServer, opts Options) (*Orchestrator, *JournalService) {
	journal := setupJournal(t)
	o := NewOrchestrator(Dependencies{
		Transport: f,
		Codec:     codec.XML{},
		Extractor: archive.Zip{},
		Store:     cache.NewApplications(),
		Fetcher:   f,
		Journal:   journal,
	}, opts, nil)
	return o, journal
}
