package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Schedule ──────────────────────────────────────────────────────
	ErrScheduleDisabled ErrCode = "SCHEDULE_DISABLED"
	ErrOutsideWindow    ErrCode = "OUTSIDE_WINDOW"
	ErrScheduleLocked   ErrCode = "SCHEDULE_LOCKED"
	ErrInvalidWindow    ErrCode = "INVALID_WINDOW"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Session ───────────────────────────────────────────────────────
	ErrAttemptsExceeded  ErrCode = "ATTEMPTS_EXCEEDED"
	ErrSessionActive     ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionExpired    ErrCode = "SESSION_EXPIRED"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrInvalidAnswer     ErrCode = "INVALID_ANSWER_SHAPE"
	ErrResultNotReady    ErrCode = "RESULT_NOT_READY"
	ErrAlreadyFinalized  ErrCode = "ALREADY_FINALIZED"
	ErrStoreUnavailable  ErrCode = "STORE_UNAVAILABLE"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Schedule ──────────────────────────────────────────────────────
	case ErrScheduleDisabled:
		return "Jadwal ujian ini tidak aktif."
	case ErrOutsideWindow:
		return "Ujian hanya dapat dimulai dalam rentang waktu jadwal."
	case ErrScheduleLocked:
		return "Jadwal tidak dapat diubah karena ujian akan segera dimulai."
	case ErrInvalidWindow:
		return "Waktu selesai jadwal harus setelah waktu mulai."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrAttemptsExceeded:
		return "Batas jumlah percobaan untuk jadwal ini telah tercapai."
	case ErrSessionActive:
		return "Anda masih memiliki sesi ujian yang sedang berjalan."
	case ErrSessionExpired:
		return "Waktu ujian telah habis."
	case ErrSessionClosed:
		return "Sesi ujian sudah ditutup."
	case ErrInvalidAnswer:
		return "Format jawaban tidak sesuai dengan jenis soal."
	case ErrResultNotReady:
		return "Hasil ujian belum tersedia."
	case ErrAlreadyFinalized:
		return "Sesi ujian sudah diselesaikan."
	case ErrStoreUnavailable:
		return "Layanan penyimpanan sedang tidak tersedia. Silakan coba lagi."
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
