package models

import "time"

// OwnerKind identifies which table owns a file slot
type OwnerKind string

const (
	OwnerApplication OwnerKind = "application"
	OwnerStudent     OwnerKind = "student"
	OwnerFaculty     OwnerKind = "faculty"
)

// SlotSpec describes one allowed file slot
type SlotSpec struct {
	Name  string
	Multi bool
}

var (
	documentSlots = []SlotSpec{
		{Name: "passport_photo"},
		{Name: "signature"},
		{Name: "class10_marksheet"},
		{Name: "class12_marksheet"},
		{Name: "aadhaar_card"},
		{Name: "caste_certificate"},
		{Name: "other_documents", Multi: true},
	}
	facultySlots = []SlotSpec{
		{Name: "profile_photo"},
		{Name: "resume"},
		{Name: "certificates", Multi: true},
	}
)

// SlotsFor returns the slot allow-list for an owner kind
func SlotsFor(kind OwnerKind) []SlotSpec {
	switch kind {
	case OwnerApplication, OwnerStudent:
		return documentSlots
	case OwnerFaculty:
		return facultySlots
	}
	return nil
}

// LookupSlot returns the slot definition for name, if the owner kind allows it
func LookupSlot(kind OwnerKind, name string) (SlotSpec, bool) {
	for _, s := range SlotsFor(kind) {
		if s.Name == name {
			return s, true
		}
	}
	return SlotSpec{}, false
}

// StoredFile is one row of 'file_uploads': a blob URL bound to an owner slot
type StoredFile struct {
	ID        int64     `json:"id" db:"id"`
	OwnerKind OwnerKind `json:"ownerKind" db:"owner_kind"`
	OwnerID   int64     `json:"ownerId" db:"owner_id"`
	Slot      string    `json:"slot" db:"slot"`
	FileURL   string    `json:"fileUrl" db:"file_url"`
	FileSize  int64     `json:"fileSize" db:"file_size"`
	FileType  string    `json:"fileType" db:"file_type"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// FileSet is the set of file URLs held for one owner, keyed by slot
type FileSet struct {
	OwnerKind OwnerKind           `json:"ownerKind"`
	OwnerID   int64               `json:"ownerId"`
	Single    map[string]string   `json:"files"`
	Multi     map[string][]string `json:"collections"`
}

// NewFileSet groups stored files by slot cardinality
func NewFileSet(kind OwnerKind, ownerID int64, files []*StoredFile) *FileSet {
	set := &FileSet{
		OwnerKind: kind,
		OwnerID:   ownerID,
		Single:    map[string]string{},
		Multi:     map[string][]string{},
	}
	for _, f := range files {
		def, ok := LookupSlot(kind, f.Slot)
		if !ok {
			continue
		}
		if def.Multi {
			set.Multi[f.Slot] = append(set.Multi[f.Slot], f.FileURL)
		} else {
			set.Single[f.Slot] = f.FileURL
		}
	}
	return set
}

// BlobDeletion is an outbox row for a blob that must be removed from storage
type BlobDeletion struct {
	ID        int64      `json:"id" db:"id"`
	BlobURL   string     `json:"blobUrl" db:"blob_url"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError *string    `json:"lastError,omitempty" db:"last_error"`
	DoneAt    *time.Time `json:"doneAt,omitempty" db:"done_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}
