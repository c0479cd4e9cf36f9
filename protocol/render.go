package protocol

import "sync"

// Id names an object the renderer tracks, allocated monotonically
// starting at zero.
type Id uint64

// Point3 is a three-component vector used for both position data and
// object geometry.
type Point3 struct {
	X float32 `cbor:"x"`
	Y float32 `cbor:"y"`
	Z float32 `cbor:"z"`
}

// Transform is a rigid-body pose: position, rotation (as Euler
// degrees) and non-uniform scale.
type Transform struct {
	Position Point3 `cbor:"position"`
	Rotation Point3 `cbor:"rotation"`
	Scale    Point3 `cbor:"scale"`
}

// IdentityTransform is the origin, no rotation, unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: Point3{X: 1, Y: 1, Z: 1}}
}

// ObjectData describes the geometry and appearance of an object at
// creation time. Shape is a reference renderer's drawing-primitive
// name (e.g. "line"); Points carries its vertices in model space.
type ObjectData struct {
	Shape  string   `cbor:"shape"`
	Color  string   `cbor:"color"`
	Points []Point3 `cbor:"points"`
}

// RequestKind tags which variant a Request payload carries.
type RequestKind int

const (
	RequestCreateObject RequestKind = iota
	RequestSetObjectTransform
	RequestDeleteObject
	RequestWaitFrame
)

// SetTransformArgs is the payload of a SetObjectTransform request.
type SetTransformArgs struct {
	Id        Id        `cbor:"id"`
	Transform Transform `cbor:"transform"`
}

// Request is the renderer's request envelope. At most one payload
// field is populated, selected by Kind (a WaitFrame request carries
// none); CreateObject and WaitFrame
// expect a Response, the others are one-way.
type Request struct {
	Kind         RequestKind       `cbor:"kind"`
	CreateObject *ObjectData       `cbor:"create_object,omitempty"`
	SetTransform *SetTransformArgs `cbor:"set_transform,omitempty"`
	DeleteObject *Id               `cbor:"delete_object,omitempty"`
}

// NewCreateObjectRequest builds a CreateObject request envelope.
func NewCreateObjectRequest(obj ObjectData) Request {
	return Request{Kind: RequestCreateObject, CreateObject: &obj}
}

// NewSetObjectTransformRequest builds a SetObjectTransform request envelope.
func NewSetObjectTransformRequest(id Id, t Transform) Request {
	return Request{Kind: RequestSetObjectTransform, SetTransform: &SetTransformArgs{Id: id, Transform: t}}
}

// NewDeleteObjectRequest builds a DeleteObject request envelope.
func NewDeleteObjectRequest(id Id) Request {
	return Request{Kind: RequestDeleteObject, DeleteObject: &id}
}

// NewWaitFrameRequest builds a WaitFrame request envelope.
func NewWaitFrameRequest() Request {
	return Request{Kind: RequestWaitFrame}
}

// ResponseKind tags which variant a Response payload carries.
type ResponseKind int

const (
	ResponseCreateObject ResponseKind = iota
	ResponseWaitFrame
)

// FrameInfo is the WaitFrame response: the set of keys currently held
// down, as observed by the window thread at the start of the frame.
type FrameInfo struct {
	Keys []rune `cbor:"keys"`
}

// Response is the renderer's response envelope, sent only for
// CreateObject and WaitFrame requests, in request order.
type Response struct {
	Kind      ResponseKind `cbor:"kind"`
	CreatedId *Id          `cbor:"created_id,omitempty"`
	Frame     *FrameInfo   `cbor:"frame,omitempty"`
}

// ObjectTable is the renderer's shared object store. It is the one
// piece of cross-thread state in the reference system: the window
// thread renders from it while client-handler tasks mutate it
// concurrently, so every access is guarded by a mutex.
type ObjectTable struct {
	mu      sync.Mutex
	nextId  Id
	objects map[Id]ObjectData
	poses   map[Id]Transform
}

// NewObjectTable constructs an empty table.
func NewObjectTable() *ObjectTable {
	return &ObjectTable{
		objects: make(map[Id]ObjectData),
		poses:   make(map[Id]Transform),
	}
}

// Create inserts obj under a freshly allocated Id at the identity
// transform and returns that Id.
func (t *ObjectTable) Create(obj ObjectData) Id {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextId
	t.nextId++
	t.objects[id] = obj
	t.poses[id] = IdentityTransform()
	return id
}

// SetTransform updates the pose of an existing object. Unknown ids
// are ignored; SetObjectTransform is one-way on the wire, so there is
// no error channel back to the caller.
func (t *ObjectTable) SetTransform(id Id, tr Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.objects[id]; ok {
		t.poses[id] = tr
	}
}

// Delete removes an object. Unknown ids are ignored.
func (t *ObjectTable) Delete(id Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.objects, id)
	delete(t.poses, id)
}

// Snapshot returns the current object set and poses, safe for the
// window thread to iterate without racing client handlers.
func (t *ObjectTable) Snapshot() (map[Id]ObjectData, map[Id]Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	objs := make(map[Id]ObjectData, len(t.objects))
	poses := make(map[Id]Transform, len(t.poses))
	for id, obj := range t.objects {
		objs[id] = obj
	}
	for id, tr := range t.poses {
		poses[id] = tr
	}
	return objs, poses
}

// Handle applies one request to the table and, for request kinds that
// expect a reply, returns the Response to send back. It returns false
// for one-way requests.
func (t *ObjectTable) Handle(req Request, keysDown func() []rune) (Response, bool) {
	switch req.Kind {
	case RequestCreateObject:
		var obj ObjectData
		if req.CreateObject != nil {
			obj = *req.CreateObject
		}
		id := t.Create(obj)
		return Response{Kind: ResponseCreateObject, CreatedId: &id}, true
	case RequestSetObjectTransform:
		if req.SetTransform != nil {
			t.SetTransform(req.SetTransform.Id, req.SetTransform.Transform)
		}
		return Response{}, false
	case RequestDeleteObject:
		if req.DeleteObject != nil {
			t.Delete(*req.DeleteObject)
		}
		return Response{}, false
	case RequestWaitFrame:
		var keys []rune
		if keysDown != nil {
			keys = keysDown()
		}
		return Response{Kind: ResponseWaitFrame, Frame: &FrameInfo{Keys: keys}}, true
	default:
		return Response{}, false
	}
}
