package notify

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Message IDs
const (
	MsgSessionLoadFailed   = "sessionLoadFailed"
	MsgProfileCheckFailed  = "profileCheckFailed"
	MsgProfileCreateFailed = "profileCreateFailed"
	MsgProfilesFetchFailed = "profilesFetchFailed"
	MsgSignOutFailed       = "signOutFailed"
	MsgSignedOut           = "signedOut"
	MsgSignedOutBody       = "signedOutBody"

	MsgTasksFetchFailed    = "tasksFetchFailed"
	MsgTaskCreated         = "taskCreated"
	MsgTaskCreatedBody     = "taskCreatedBody"
	MsgTaskCreateFailed    = "taskCreateFailed"
	MsgTaskUpdated         = "taskUpdated"
	MsgTaskUpdatedBody     = "taskUpdatedBody"
	MsgTaskUpdateFailed    = "taskUpdateFailed"
	MsgTaskDeleted         = "taskDeleted"
	MsgTaskDeletedBody     = "taskDeletedBody"
	MsgTaskDeleteFailed    = "taskDeleteFailed"
	MsgCommentAdded        = "commentAdded"
	MsgCommentAddedBody    = "commentAddedBody"
	MsgCommentAddFailed    = "commentAddFailed"
	MsgCommentsFetchFailed = "commentsFetchFailed"

	MsgSignInRequired  = "signInRequired"
	MsgTitleRequired   = "titleRequired"
	MsgCommentRequired = "commentRequired"
	MsgNoTaskSelected  = "noTaskSelected"
	MsgInvalidTask     = "invalidTask"
)

const (
	LanguageEn = "en"
	LanguageFr = "fr"
)

//go:embed messages/*.toml
var messageFiles embed.FS

// Catalog holds the translated notification texts.
type Catalog struct {
	bundle *i18n.Bundle
	log    *zap.Logger
}

// NewCatalog loads the embedded message files. English is the fallback
// language.
func NewCatalog(log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := fs.ReadDir(messageFiles, "messages")
	if err != nil {
		return nil, fmt.Errorf("list message files: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(messageFiles, path.Join("messages", e.Name())); err != nil {
			return nil, fmt.Errorf("load message file %s: %w", e.Name(), err)
		}
	}

	return &Catalog{bundle: bundle, log: log}, nil
}

// Languages lists the loaded languages.
func (c *Catalog) Languages() []string {
	tags := c.bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Translate renders msgID in lang, falling back to English and then to
// the ID itself.
func (c *Catalog) Translate(lang, msgID string, data map[string]any) string {
	l := i18n.NewLocalizer(c.bundle, lang, LanguageEn)
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		c.log.Warn("translation not found", zap.String("lang", lang), zap.String("message_id", msgID), zap.Error(err))
		return msgID
	}
	return msg
}
