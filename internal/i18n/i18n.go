package i18n

import "sync"

// Translator holds the active UI language and the catalog of localized
// strings. Lookups fall back to the key itself so missing entries stay
// visible instead of breaking the UI.
type Translator struct {
	mu   sync.RWMutex
	lang string
}

var catalogs = map[string]map[string]string{
	"en": {
		"app.title":                 "Support Dashboard",
		"chat.conversations":        "Conversations",
		"chat.select_conversation":  "Select a conversation",
		"chat.no_messages":          "No messages in this conversation",
		"chat.send":                 "Send",
		"chat.export":               "Export",
		"chat.image_placeholder":    "📷 Image",
		"chat.file_placeholder":     "📎 File",
		"upload.too_large":          "File size must be less than 20MB",
		"upload.unsupported":        "Please upload images, PDFs, or documents only",
		"admin.user_management":     "User Management",
		"admin.invite_user":         "Invite User",
		"admin.pending_invitations": "Pending Invitations",
		"auth.sign_in":              "Sign In",
		"auth.create_account":       "Create Account",
		"auth.invitation_required":  "Account creation is restricted to invited users only",
	},
	"de": {
		"app.title":                 "Support-Dashboard",
		"chat.conversations":        "Unterhaltungen",
		"chat.select_conversation":  "Unterhaltung auswählen",
		"chat.no_messages":          "Keine Nachrichten in dieser Unterhaltung",
		"chat.send":                 "Senden",
		"chat.export":               "Exportieren",
		"chat.image_placeholder":    "📷 Bild",
		"chat.file_placeholder":     "📎 Datei",
		"upload.too_large":          "Die Datei darf höchstens 20 MB groß sein",
		"upload.unsupported":        "Bitte nur Bilder, PDFs oder Dokumente hochladen",
		"admin.user_management":     "Benutzerverwaltung",
		"admin.invite_user":         "Benutzer einladen",
		"admin.pending_invitations": "Ausstehende Einladungen",
		"auth.sign_in":              "Anmelden",
		"auth.create_account":       "Konto erstellen",
		"auth.invitation_required":  "Konten können nur mit Einladung erstellt werden",
	},
}

func New(lang string) *Translator {
	if _, ok := catalogs[lang]; !ok {
		lang = "en"
	}
	return &Translator{lang: lang}
}

func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lang
}

func (t *Translator) SetLanguage(lang string) bool {
	if _, ok := catalogs[lang]; !ok {
		return false
	}
	t.mu.Lock()
	t.lang = lang
	t.mu.Unlock()
	return true
}

func (t *Translator) T(key string) string {
	t.mu.RLock()
	lang := t.lang
	t.mu.RUnlock()
	if s, ok := catalogs[lang][key]; ok {
		return s
	}
	return key
}

// Catalog returns a copy of the table for the given language, or nil if the
// language is unknown.
func Catalog(lang string) map[string]string {
	src, ok := catalogs[lang]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
