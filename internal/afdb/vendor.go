package afdb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Vendor is a chip database provider.
type Vendor interface {
	Name() string
	ListBoards() []Board
	FindBoard(name string) (Board, bool)
	RawDatabase() []byte
}

// ArchiveVendor is a Vendor whose database blob was loaded from disk or memory.
type ArchiveVendor struct {
	name   string
	blob   []byte
	digest string
	boards []Board
}

// NewArchiveVendor decodes blob (through the shared cache) and indexes its boards.
func NewArchiveVendor(name string, blob []byte) (*ArchiveVendor, error) {
	sum := sha256.Sum256(blob)
	v := &ArchiveVendor{name: name, blob: blob, digest: hex.EncodeToString(sum[:])}
	a, err := Shared(v)
	if err != nil {
		return nil, err
	}
	boards, err := a.Boards()
	if err != nil {
		return nil, err
	}
	v.boards = boards
	return v, nil
}

// OpenArchiveVendor reads a vendor database file. Read errors are returned unwrapped.
func OpenArchiveVendor(name, path string) (*ArchiveVendor, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewArchiveVendor(name, blob)
}

func (v *ArchiveVendor) Name() string { return v.name }

func (v *ArchiveVendor) RawDatabase() []byte { return v.blob }

// Digest returns the SHA-256 of the database blob in hex.
func (v *ArchiveVendor) Digest() string { return v.digest }

func (v *ArchiveVendor) ListBoards() []Board {
	out := make([]Board, len(v.boards))
	copy(out, v.boards)
	return out
}

func (v *ArchiveVendor) FindBoard(name string) (Board, bool) {
	for _, b := range v.boards {
		if b.Board == name {
			return b, true
		}
	}
	return Board{}, false
}

type sharedEntry struct {
	once    sync.Once
	archive *Archive
	err     error
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*sharedEntry{}
)

// digester is implemented by vendors that can identify their blob without
// handing it over.
type digester interface {
	Digest() string
}

// Shared returns the decoded archive for v, decoding it at most once per
// vendor and database for the life of the process. Vendors implementing
// Digest are keyed by name and digest, so two databases loaded under one
// vendor name never share an entry; other vendors are keyed by name alone.
// The result must not be modified.
func Shared(v Vendor) (*Archive, error) {
	key := v.Name()
	if d, ok := v.(digester); ok {
		key += "@" + d.Digest()
	}

	sharedMu.Lock()
	e, ok := shared[key]
	if !ok {
		e = &sharedEntry{}
		shared[key] = e
	}
	sharedMu.Unlock()

	e.once.Do(func() {
		e.archive, e.err = Decode(v.RawDatabase())
	})
	return e.archive, e.err
}

// VendorBoard is a board qualified by its vendor.
type VendorBoard struct {
	Vendor string `json:"vendor"`
	Board  string `json:"board"`
	Chip   string `json:"chip"`
}

// Registry holds the vendors known to this process, keyed by name.
type Registry struct {
	vendors map[string]Vendor
}

// NewRegistry returns a registry holding vs.
func NewRegistry(vs ...Vendor) *Registry {
	r := &Registry{vendors: make(map[string]Vendor)}
	for _, v := range vs {
		r.Register(v)
	}
	return r
}

// Register adds v, replacing any vendor with the same name.
func (r *Registry) Register(v Vendor) {
	r.vendors[v.Name()] = v
}

// Vendor returns the named vendor.
func (r *Registry) Vendor(name string) (Vendor, bool) {
	v, ok := r.vendors[name]
	return v, ok
}

// Names returns the registered vendor names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.vendors))
	for n := range r.vendors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Enumerate lists every board of every vendor, vendors in name order.
func (r *Registry) Enumerate() []VendorBoard {
	var out []VendorBoard
	for _, name := range r.Names() {
		for _, b := range r.vendors[name].ListBoards() {
			out = append(out, VendorBoard{Vendor: name, Board: b.Board, Chip: b.Chip})
		}
	}
	return out
}

// FindBoard looks up a board by vendor and name.
func (r *Registry) FindBoard(vendor, board string) (VendorBoard, error) {
	v, ok := r.vendors[vendor]
	if !ok {
		return VendorBoard{}, fmt.Errorf("unknown vendor %q", vendor)
	}
	b, ok := v.FindBoard(board)
	if !ok {
		return VendorBoard{}, fmt.Errorf("board %q not found for vendor %q", board, vendor)
	}
	return VendorBoard{Vendor: vendor, Board: b.Board, Chip: b.Chip}, nil
}
