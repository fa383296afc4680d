package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// mockDriver is a mock implementation of the Driver interface for testing.
type mockDriver struct {
	mu sync.Mutex

	url string

	// Configurable behavior
	versionFunc       func(ctx context.Context) (string, error)
	imageByNameFunc   func(ctx context.Context, name string) (*RemoteImage, error)
	imageByIDFunc     func(ctx context.Context, id int) (*RemoteImage, error)
	vmByNameFunc      func(ctx context.Context, name string) (*RemoteVM, error)
	vmByIDFunc        func(ctx context.Context, id int) (*RemoteVM, error)
	allocateImageFunc func(ctx context.Context, tpl ImageTemplate, datastoreID int) (int, error)
	deleteImageFunc   func(ctx context.Context, id int) error
	chmodImageFunc    func(ctx context.Context, id int, perms Permissions) error
	setPersistentFunc func(ctx context.Context, id int, persistent bool) error
	attachDiskFunc    func(ctx context.Context, vmID int, disk DiskAttachment) error
	saveDiskFunc      func(ctx context.Context, vmID, diskID int, name string, caps Capabilities) (int, error)

	// Call tracking
	imageByNameCalls   []string
	imageByIDCalls     []int
	vmByNameCalls      []string
	vmByIDCalls        []int
	allocateImageCalls []ImageTemplate
	deleteImageCalls   []int
	chmodImageCalls    []Permissions
	setPersistentCalls []int
	attachDiskCalls    []DiskAttachment
	saveDiskCalls      []Capabilities
}

// newMockDriver creates a new mock driver with default behavior: nothing
// exists and every mutation succeeds.
func newMockDriver() *mockDriver {
	m := &mockDriver{url: "opennebula:http://one.test:2633/RPC2"}

	m.versionFunc = func(ctx context.Context) (string, error) {
		return "6.8.0", nil
	}
	m.imageByNameFunc = func(ctx context.Context, name string) (*RemoteImage, error) {
		return nil, nil
	}
	m.imageByIDFunc = func(ctx context.Context, id int) (*RemoteImage, error) {
		return nil, nil
	}
	m.vmByNameFunc = func(ctx context.Context, name string) (*RemoteVM, error) {
		return nil, nil
	}
	m.vmByIDFunc = func(ctx context.Context, id int) (*RemoteVM, error) {
		return nil, nil
	}
	m.allocateImageFunc = func(ctx context.Context, tpl ImageTemplate, datastoreID int) (int, error) {
		return 42, nil
	}
	m.deleteImageFunc = func(ctx context.Context, id int) error {
		return nil
	}
	m.chmodImageFunc = func(ctx context.Context, id int, perms Permissions) error {
		return nil
	}
	m.setPersistentFunc = func(ctx context.Context, id int, persistent bool) error {
		return nil
	}
	m.attachDiskFunc = func(ctx context.Context, vmID int, disk DiskAttachment) error {
		return nil
	}
	m.saveDiskFunc = func(ctx context.Context, vmID, diskID int, name string, caps Capabilities) (int, error) {
		return 43, nil
	}

	return m
}

func (m *mockDriver) URL() string {
	return m.url
}

func (m *mockDriver) Version(ctx context.Context) (string, error) {
	return m.versionFunc(ctx)
}

func (m *mockDriver) ImageByName(ctx context.Context, name string) (*RemoteImage, error) {
	m.mu.Lock()
	m.imageByNameCalls = append(m.imageByNameCalls, name)
	m.mu.Unlock()
	return m.imageByNameFunc(ctx, name)
}

func (m *mockDriver) ImageByID(ctx context.Context, id int) (*RemoteImage, error) {
	m.mu.Lock()
	m.imageByIDCalls = append(m.imageByIDCalls, id)
	m.mu.Unlock()
	return m.imageByIDFunc(ctx, id)
}

func (m *mockDriver) VMByName(ctx context.Context, name string) (*RemoteVM, error) {
	m.mu.Lock()
	m.vmByNameCalls = append(m.vmByNameCalls, name)
	m.mu.Unlock()
	return m.vmByNameFunc(ctx, name)
}

func (m *mockDriver) VMByID(ctx context.Context, id int) (*RemoteVM, error) {
	m.mu.Lock()
	m.vmByIDCalls = append(m.vmByIDCalls, id)
	m.mu.Unlock()
	return m.vmByIDFunc(ctx, id)
}

func (m *mockDriver) AllocateImage(ctx context.Context, tpl ImageTemplate, datastoreID int) (int, error) {
	m.mu.Lock()
	m.allocateImageCalls = append(m.allocateImageCalls, tpl)
	m.mu.Unlock()
	return m.allocateImageFunc(ctx, tpl, datastoreID)
}

func (m *mockDriver) DeleteImage(ctx context.Context, id int) error {
	m.mu.Lock()
	m.deleteImageCalls = append(m.deleteImageCalls, id)
	m.mu.Unlock()
	return m.deleteImageFunc(ctx, id)
}

func (m *mockDriver) ChmodImage(ctx context.Context, id int, perms Permissions) error {
	m.mu.Lock()
	m.chmodImageCalls = append(m.chmodImageCalls, perms)
	m.mu.Unlock()
	return m.chmodImageFunc(ctx, id, perms)
}

func (m *mockDriver) SetPersistent(ctx context.Context, id int, persistent bool) error {
	m.mu.Lock()
	m.setPersistentCalls = append(m.setPersistentCalls, id)
	m.mu.Unlock()
	return m.setPersistentFunc(ctx, id, persistent)
}

func (m *mockDriver) AttachDisk(ctx context.Context, vmID int, disk DiskAttachment) error {
	m.mu.Lock()
	m.attachDiskCalls = append(m.attachDiskCalls, disk)
	m.mu.Unlock()
	return m.attachDiskFunc(ctx, vmID, disk)
}

func (m *mockDriver) SaveDisk(ctx context.Context, vmID, diskID int, name string, caps Capabilities) (int, error) {
	m.mu.Lock()
	m.saveDiskCalls = append(m.saveDiskCalls, caps)
	m.mu.Unlock()
	return m.saveDiskFunc(ctx, vmID, diskID, name, caps)
}

// mutationCount returns the number of state-changing calls made.
func (m *mockDriver) mutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocateImageCalls) + len(m.deleteImageCalls) + len(m.chmodImageCalls) +
		len(m.setPersistentCalls) + len(m.attachDiskCalls) + len(m.saveDiskCalls)
}

// lookupCount returns the number of lookups made.
func (m *mockDriver) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imageByNameCalls) + len(m.imageByIDCalls) + len(m.vmByNameCalls) + len(m.vmByIDCalls)
}

// imageSequence returns a lookup func that yields states in order and then
// repeats the last one.
func imageSequence(id int, name string, states ...string) func(context.Context, int) (*RemoteImage, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, _ int) (*RemoteImage, error) {
		mu.Lock()
		defer mu.Unlock()
		state := states[i]
		if i < len(states)-1 {
			i++
		}
		return &RemoteImage{ID: id, Name: name, State: state}, nil
	}
}

// mockFileServer is a mock implementation of the FileServer interface.
type mockFileServer struct {
	mu sync.Mutex

	serveFunc func(ctx context.Context, path string, port int) (ServedFile, error)

	serveCalls []string
	served     []*mockServedFile
}

func newMockFileServer() *mockFileServer {
	m := &mockFileServer{}
	m.serveFunc = func(ctx context.Context, path string, port int) (ServedFile, error) {
		url, _ := m.URLFor(path, port)
		f := &mockServedFile{url: url}
		m.served = append(m.served, f)
		return f, nil
	}
	return m
}

func (m *mockFileServer) URLFor(path string, port int) (string, error) {
	if port == 0 {
		port = 8066
	}
	return fmt.Sprintf("http://10.0.0.5:%d/%s", port, filepath.Base(path)), nil
}

func (m *mockFileServer) Serve(ctx context.Context, path string, port int) (ServedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serveCalls = append(m.serveCalls, path)
	return m.serveFunc(ctx, path, port)
}

// mockServedFile counts Close calls.
type mockServedFile struct {
	mu       sync.Mutex
	url      string
	closeErr error
	closes   int
}

func (f *mockServedFile) URL() string {
	return f.url
}

func (f *mockServedFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *mockServedFile) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// mockFetcher is a mock implementation of the Fetcher interface.
type mockFetcher struct {
	mu sync.Mutex

	fetchFunc  func(ctx context.Context, url, dest string) (int64, error)
	fetchCalls []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(ctx context.Context, url, dest string) (int64, error) {
			return 1024, nil
		},
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, url)
	m.mu.Unlock()
	return m.fetchFunc(ctx, url, dest)
}

// mockRecorder records ActionRecords.
type mockRecorder struct {
	mu      sync.Mutex
	err     error
	records []ActionRecord
}

func (m *mockRecorder) Record(ctx context.Context, rec ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

// mockObserver counts observations.
type mockObserver struct {
	mu       sync.Mutex
	outcomes []string
	polls    map[string]int
}

func (m *mockObserver) ObserveAction(action, outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, action+":"+outcome)
}

func (m *mockObserver) ObservePoll(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.polls == nil {
		m.polls = map[string]int{}
	}
	m.polls[target]++
}

// newTestController creates a Controller with fast polling and a silent logger.
func newTestController(drv Driver, mutate ...func(*Options)) *Controller {
	opts := Options{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval:  time.Millisecond,
		ImageTimeout:  2 * time.Second,
		VMTimeout:     2 * time.Second,
		DeleteTimeout: 2 * time.Second,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return newControllerWithCaps(drv, Capabilities{Version: "6.8.0", DiskSaveAs: true}, opts)
}

func intPtr(i int) *int {
	return &i
}
