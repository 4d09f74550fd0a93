package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/hyperscrape/internal/model"
)

var (
	errFakeNotFound = errors.New("not found")
	errFakeBroken   = errors.New("broken")
)

// testKey returns a valid key made of one repeated hex digit.
func testKey(c byte) model.Key {
	return model.MustNewKey(strings.Repeat(string(c), 64))
}

// memDrive is an in-memory drive used by tests.
type memDrive struct {
	files     map[string]string
	mounts    map[string]model.Key
	listErr   error
	readErrs  map[string]error
	statErrs  map[string]error
	mountErr  error
	mu        sync.Mutex
	readCount map[string]int
}

func newMemDrive(files map[string]string) *memDrive {
	if files == nil {
		files = map[string]string{}
	}
	return &memDrive{
		files:     files,
		mounts:    map[string]model.Key{},
		readErrs:  map[string]error{},
		statErrs:  map[string]error{},
		readCount: map[string]int{},
	}
}

func (d *memDrive) List(_ context.Context, _ string, _ bool) ([]string, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.files)+len(d.mounts))
	for p := range d.files {
		out = append(out, p)
	}
	for p := range d.mounts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (d *memDrive) Read(_ context.Context, path string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readCount[path]++
	if err := d.readErrs[path]; err != nil {
		return nil, err
	}
	content, ok := d.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, errFakeNotFound)
	}
	return []byte(content), nil
}

func (d *memDrive) Stat(_ context.Context, path string) (model.Stat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.statErrs[path]; err != nil {
		return model.Stat{}, err
	}
	if k, ok := d.mounts[path]; ok {
		return model.Stat{Mount: &model.Mount{Key: k}}, nil
	}
	if content, ok := d.files[path]; ok {
		return model.Stat{Size: int64(len(content))}, nil
	}
	return model.Stat{}, fmt.Errorf("%s: %w", path, errFakeNotFound)
}

func (d *memDrive) Mount(_ context.Context, source model.Key, target string) error {
	if d.mountErr != nil {
		return d.mountErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.mounts[target]; ok {
		return fmt.Errorf("%s: already exists", target)
	}
	d.mounts[target] = source
	return nil
}

func (d *memDrive) reads(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCount[path]
}

// memAccessor serves memDrives by key.
type memAccessor struct {
	drives  map[model.Key]*memDrive
	pingErr error
	mu      sync.Mutex
	opened  []model.Key
}

func newMemAccessor() *memAccessor {
	return &memAccessor{drives: map[model.Key]*memDrive{}}
}

func (a *memAccessor) add(k model.Key, d *memDrive) *memDrive {
	a.drives[k] = d
	return d
}

func (a *memAccessor) Open(_ context.Context, key model.Key) (Drive, error) {
	a.mu.Lock()
	a.opened = append(a.opened, key)
	a.mu.Unlock()
	d, ok := a.drives[key]
	if !ok {
		return nil, fmt.Errorf("drive %s: %w", key.Short(), errFakeNotFound)
	}
	return d, nil
}

func (a *memAccessor) openCount(key model.Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, k := range a.opened {
		if k == key {
			n++
		}
	}
	return n
}

// pingAccessor is a memAccessor that also implements Pinger.
type pingAccessor struct {
	*memAccessor
}

func (a pingAccessor) Ping(context.Context) error {
	return a.pingErr
}

// recordingObserver stores every event it receives.
type recordingObserver struct {
	mu       sync.Mutex
	steps    []model.Key
	failures []*OpError
	finished *model.CrawlReport
}

func (o *recordingObserver) OnStep(key model.Key, _ model.Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, key)
}

func (o *recordingObserver) OnFailure(err *OpError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, err)
}

func (o *recordingObserver) OnFinish(r *model.CrawlReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = r
}

// countingRecorder counts Recorder calls.
type countingRecorder struct {
	mu         sync.Mutex
	visited    int
	filesOK    int
	filesFail  int
	discovered int
	mounted    int
	failures   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failures: map[string]int{}}
}

func (r *countingRecorder) DriveVisited(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited++
}

func (r *countingRecorder) FrontierSize(int, int) {}

func (r *countingRecorder) FileRead(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.filesOK++
	} else {
		r.filesFail++
	}
}

func (r *countingRecorder) KeysDiscovered(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered += n
}

func (r *countingRecorder) DriveMounted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounted++
}

func (r *countingRecorder) Failure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}
