package one

import (
	"context"
	"encoding/xml"
	"sync"
	"testing"

	errs "github.com/OpenNebula/one/src/oca/go/src/goca/errors"
	imgschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/image"
	"github.com/OpenNebula/one/src/oca/go/src/goca/schemas/shared"
	vmschema "github.com/OpenNebula/one/src/oca/go/src/goca/schemas/vm"
)

// recordedCall is one call made through fakeAPI.
type recordedCall struct {
	method string
	args   []interface{}
}

// fakeAPI answers from goca documents decoded out of canned XML.
type fakeAPI struct {
	mu sync.Mutex

	// Configurable behavior
	serverVersion string
	images        imgschema.Pool
	vmPoolDoc     vmschema.Pool
	vms           map[int]*vmschema.VM
	nextID        int
	errs          map[string]error

	// Call tracking
	calls []recordedCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		vms:    make(map[int]*vmschema.VM),
		nextID: 100,
		errs:   make(map[string]error),
	}
}

// newFixtureAPI returns a fake loaded with the image pool and VM fixtures.
func newFixtureAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := newFakeAPI()
	decodeFixture(t, imagePoolXML, &f.images)
	decodeFixture(t, vmPoolXML, &f.vmPoolDoc)
	web := &vmschema.VM{}
	decodeFixture(t, vmXML, web)
	f.vms[web.ID] = web
	return f
}

func decodeFixture(t *testing.T, doc string, v interface{}) {
	t.Helper()
	if err := xml.Unmarshal([]byte(doc), v); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
}

// record tracks a call and returns the error configured for method.
func (f *fakeAPI) record(method string, args ...interface{}) error {
	f.calls = append(f.calls, recordedCall{method: method, args: args})
	return f.errs[method]
}

func noExists(method string) error {
	return classify(method, &errs.ResponseError{Code: errs.OneNoExistsError})
}

func (f *fakeAPI) version(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.system.version"); err != nil {
		return "", err
	}
	return f.serverVersion, nil
}

func (f *fakeAPI) imagePool(ctx context.Context) (*imgschema.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.imagepool.info"); err != nil {
		return nil, err
	}
	pool := f.images
	return &pool, nil
}

func (f *fakeAPI) imageInfo(ctx context.Context, id int) (*imgschema.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.image.info", id); err != nil {
		return nil, err
	}
	for i := range f.images.Images {
		if f.images.Images[i].ID == id {
			img := f.images.Images[i]
			return &img, nil
		}
	}
	return nil, noExists("one.image.info")
}

func (f *fakeAPI) allocateImage(ctx context.Context, tpl string, datastoreID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.image.allocate", tpl, datastoreID); err != nil {
		return 0, err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAPI) deleteImage(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("one.image.delete", id)
}

func (f *fakeAPI) chmodImage(ctx context.Context, id int, perms shared.Permissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("one.image.chmod", id, perms)
}

func (f *fakeAPI) persistentImage(ctx context.Context, id int, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("one.image.persistent", id, persistent)
}

func (f *fakeAPI) vmPool(ctx context.Context) (*vmschema.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.vmpool.info"); err != nil {
		return nil, err
	}
	pool := f.vmPoolDoc
	return &pool, nil
}

func (f *fakeAPI) vmInfo(ctx context.Context, id int) (*vmschema.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.vm.info", id); err != nil {
		return nil, err
	}
	vm, ok := f.vms[id]
	if !ok {
		return nil, noExists("one.vm.info")
	}
	return vm, nil
}

func (f *fakeAPI) attachDisk(ctx context.Context, vmID int, tpl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("one.vm.attach", vmID, tpl)
}

func (f *fakeAPI) diskSaveas(ctx context.Context, vmID, diskID int, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.vm.disksaveas", vmID, diskID, name); err != nil {
		return 0, err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAPI) saveDisk(ctx context.Context, vmID, diskID int, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("one.vm.savedisk", vmID, diskID, name); err != nil {
		return 0, err
	}
	f.nextID++
	return f.nextID, nil
}

// methods returns the method names called, in order.
func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

// last returns the most recent call to method.
func (f *fakeAPI) last(method string) (recordedCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i], true
		}
	}
	return recordedCall{}, false
}

const testEndpoint = "http://one.test:2633/RPC2"

func newTestClient(f *fakeAPI) *Client {
	return newClientWithAPI(testEndpoint, f)
}

const imagePoolXML = `<IMAGE_POOL>
  <IMAGE>
    <ID>7</ID>
    <UID>0</UID>
    <UNAME>oneadmin</UNAME>
    <NAME>base</NAME>
    <PERSISTENT>0</PERSISTENT>
    <SOURCE>/var/lib/one/datastores/1/abc123</SOURCE>
    <PATH>http://10.0.0.5:8066/base.qcow2</PATH>
    <STATE>1</STATE>
    <DATASTORE_ID>1</DATASTORE_ID>
    <TEMPLATE>
      <DESCRIPTION><![CDATA[base image]]></DESCRIPTION>
      <DEV_PREFIX><![CDATA[vd]]></DEV_PREFIX>
      <DRIVER><![CDATA[qcow2]]></DRIVER>
    </TEMPLATE>
  </IMAGE>
  <IMAGE>
    <ID>8</ID>
    <UNAME>oneadmin</UNAME>
    <NAME>data</NAME>
    <PERSISTENT>1</PERSISTENT>
    <STATE>8</STATE>
    <DATASTORE_ID>1</DATASTORE_ID>
    <TEMPLATE/>
  </IMAGE>
</IMAGE_POOL>`

const vmXML = `<VM>
  <ID>12</ID>
  <NAME>web</NAME>
  <STATE>3</STATE>
  <LCM_STATE>3</LCM_STATE>
  <TEMPLATE>
    <CPU><![CDATA[1]]></CPU>
    <DISK>
      <DISK_ID><![CDATA[0]]></DISK_ID>
      <IMAGE><![CDATA[base]]></IMAGE>
      <IMAGE_ID><![CDATA[7]]></IMAGE_ID>
      <TARGET><![CDATA[vda]]></TARGET>
    </DISK>
    <DISK>
      <DISK_ID><![CDATA[1]]></DISK_ID>
      <IMAGE><![CDATA[data]]></IMAGE>
      <IMAGE_ID><![CDATA[8]]></IMAGE_ID>
      <TARGET><![CDATA[vdb]]></TARGET>
    </DISK>
    <DISK>
      <DISK_ID><![CDATA[2]]></DISK_ID>
      <TYPE><![CDATA[fs]]></TYPE>
      <TARGET><![CDATA[vdc]]></TARGET>
    </DISK>
  </TEMPLATE>
</VM>`

const vmPoolXML = `<VM_POOL>
  <VM><ID>11</ID><NAME>db</NAME><STATE>8</STATE><LCM_STATE>0</LCM_STATE></VM>
  <VM><ID>12</ID><NAME>web</NAME><STATE>3</STATE><LCM_STATE>3</LCM_STATE></VM>
</VM_POOL>`
