package models

import "time"

// DocumentType is the closed enumeration required across all path types
// ( required-document-sets); this union resolves the ambiguity
// noted in  open questions.
type DocumentType string

const (
	DocumentKartuKeluarga           DocumentType = "kartu_keluarga"
	DocumentAktaKelahiran           DocumentType = "akta_kelahiran"
	DocumentRapor                   DocumentType = "rapor"
	DocumentSertifikatPrestasi      DocumentType = "sertifikat_prestasi"
	DocumentSuratKeteranganAfirmasi DocumentType = "surat_keterangan_afirmasi"
	DocumentSuratKeteranganPindah   DocumentType = "surat_keterangan_pindah"
)

// RequiredDocumentSets enumerates, per path type, the document_type set that
// Submit checks for presence.
var RequiredDocumentSets = map[PathType][]DocumentType{
	PathTypeZonasi: {
		DocumentKartuKeluarga,
		DocumentAktaKelahiran,
	},
	PathTypePrestasi: {
		DocumentKartuKeluarga,
		DocumentAktaKelahiran,
		DocumentRapor,
		DocumentSertifikatPrestasi,
	},
	PathTypeAfirmasi: {
		DocumentKartuKeluarga,
		DocumentAktaKelahiran,
		DocumentSuratKeteranganAfirmasi,
	},
	PathTypePerpindahanTugas: {
		DocumentKartuKeluarga,
		DocumentAktaKelahiran,
		DocumentSuratKeteranganPindah,
	},
}

// VerificationStatus is the closed set for a Document's advisory verification.
type VerificationStatus string

const (
	DocumentPending  VerificationStatus = "pending"
	DocumentApproved VerificationStatus = "approved"
	DocumentRejected VerificationStatus = "rejected"
)

// Document is an uploaded artifact attached to a Registration. The core
// stores only the URL; the upload path is a collaborator.
type Document struct {
	ID                 int64               `db:"id" json:"id"`
	RegistrationID     int64               `db:"registration_id" json:"registration_id"`
	DocumentType       DocumentType        `db:"document_type" json:"document_type"`
	FileURL            string              `db:"file_url" json:"file_url"`
	FileName           string              `db:"file_name" json:"file_name"`
	FileSize           int64               `db:"file_size" json:"file_size"`
	MimeType           string              `db:"mime_type" json:"mime_type"`
	VerificationStatus VerificationStatus  `db:"verification_status" json:"verification_status"`
	RejectionReason    *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	VerifiedBy         *int64              `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time          `db:"verified_at" json:"verified_at,omitempty"`
	OrphanedAt         *time.Time          `db:"orphaned_at" json:"-"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// AllowedDocumentMIMEs restates the fixed MIME allow-list
var AllowedDocumentMIMEs = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

// MaxDocumentSizeBytes is the 2 MiB cap
const MaxDocumentSizeBytes = 2 * 1024 * 1024
