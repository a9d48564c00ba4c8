package handlers

import (
	"genstudio/internal/middleware"
	"genstudio/internal/session"
)

const (
	msgBlankPrompt        = "Prompt must not be blank."
	msgInProgress         = "A generation request is already in progress."
	msgInvalidPayload     = "Invalid request payload."
	msgStorageUnavailable = "History storage is unavailable."
	msgNoAPIKey           = "No API key is available. Provide a key and try again."
	msgInternal           = "Something went wrong. Please try again."
)

var indonesian = map[string]string{
	session.MessageAuthExpired:  "Sesi kunci API Anda telah berakhir. Silakan pilih kunci lagi.",
	session.MessageRateLimited:  "Kuota habis. Harap tunggu sebelum mencoba lagi atau periksa paket Anda.",
	session.MessageGeneric:      "Pembuatan gagal. Silakan coba lagi.",
	session.MessageStorageWrite: "Hasil berhasil dibuat tetapi tidak dapat disimpan ke riwayat.",
	msgBlankPrompt:              "Prompt tidak boleh kosong.",
	msgInProgress:               "Permintaan pembuatan sedang berjalan.",
	msgInvalidPayload:           "Payload permintaan tidak valid.",
	msgStorageUnavailable:       "Penyimpanan riwayat tidak tersedia.",
	msgNoAPIKey:                 "Kunci API tidak tersedia. Berikan kunci lalu coba lagi.",
	msgInternal:                 "Terjadi kesalahan. Silakan coba lagi.",
}

func init() {
	if err := middleware.RegisterTranslations(indonesian); err != nil {
		panic(err)
	}
}
