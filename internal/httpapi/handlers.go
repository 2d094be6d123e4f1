package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"courseware.fit/polyglot/internal/language"
	"courseware.fit/polyglot/internal/preview"
	"courseware.fit/polyglot/internal/replicate"
	"courseware.fit/polyglot/internal/resource"
)

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "polyglot",
		"time":    time.Now().UTC(),
	})
}

// handleResource returns a resource's metadata, plus its content document for
// the requested language and optionally the mailbox simulation for one group.
func (s *Server) handleResource(c echo.Context) error {
	resourceID := strings.TrimSpace(c.Param("resource_id"))
	if resourceID == "" {
		return failValidation(c, map[string]string{"resource_id": "is required"})
	}

	ctx := c.Request().Context()
	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return failNotFound(c, "Resource not found")
		}
		s.logger.Error().Err(err).Str("resource_id", resourceID).Msg("load resource failed")
		return internalError(c, "Failed to load resource")
	}

	response := map[string]any{"resource": res}

	lang := language.NormalizeCode(c.QueryParam("lang"))
	if rawLang := strings.TrimSpace(c.QueryParam("lang")); rawLang != "" && lang == "" {
		return failValidation(c, map[string]string{"lang": "is not a valid language code"})
	}
	if lang != "" {
		content, err := s.repo.GetContent(ctx, resourceID, lang)
		if err != nil {
			s.logger.Error().Err(err).Str("resource_id", resourceID).Str("lang", lang).Msg("load content failed")
			return internalError(c, "Failed to load content")
		}
		if content == nil {
			return failNotFound(c, "Content is not available in the requested language")
		}
		response["language"] = lang
		response["content"] = content

		if group := strings.TrimSpace(c.QueryParam("mailbox")); group != "" {
			mailbox, found, err := s.loadMailbox(c, res, group, lang)
			if err != nil {
				return internalError(c, "Failed to load mailbox simulation")
			}
			if !found {
				return failNotFound(c, "Mailbox simulation is not available for the requested group")
			}
			response["mailbox"] = mailbox
		}
	}

	return success(c, response)
}

// handleMailboxPreview renders readable-text previews of a stored mailbox
// simulation's messages.
func (s *Server) handleMailboxPreview(c echo.Context) error {
	resourceID := strings.TrimSpace(c.Param("resource_id"))
	if resourceID == "" {
		return failValidation(c, map[string]string{"resource_id": "is required"})
	}
	lang := language.NormalizeCode(c.QueryParam("lang"))
	if lang == "" {
		return failValidation(c, map[string]string{"lang": "is required and must be a valid language code"})
	}

	ctx := c.Request().Context()
	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return failNotFound(c, "Resource not found")
		}
		s.logger.Error().Err(err).Str("resource_id", resourceID).Msg("load resource failed")
		return internalError(c, "Failed to load resource")
	}
	if !res.MailboxEnabled() {
		return fail(c, http.StatusConflict, "Resource kind does not carry a mailbox simulation", nil)
	}

	mailbox, found, err := s.loadMailbox(c, res, c.QueryParam("group"), lang)
	if err != nil {
		return internalError(c, "Failed to load mailbox simulation")
	}
	if !found {
		return failNotFound(c, "Mailbox simulation is not available for the requested group and language")
	}

	previews, err := preview.FromMailbox(mailbox, preview.DefaultMaxChars)
	if err != nil {
		s.logger.Error().Err(err).Str("resource_id", resourceID).Str("lang", lang).Msg("render mailbox preview failed")
		return internalError(c, "Failed to render mailbox preview")
	}

	return success(c, map[string]any{
		"resource_id": resourceID,
		"language":    lang,
		"messages":    previews,
	})
}

// loadMailbox tries the requested group and the resource's fallback groups in
// order, returning the first stored document.
func (s *Server) loadMailbox(c echo.Context, res *resource.Resource, group, lang string) (map[string]any, bool, error) {
	ctx := c.Request().Context()
	for _, candidate := range res.GroupCandidates(group) {
		mailbox, err := s.repo.GetMailbox(ctx, res.ID, candidate, lang)
		if err != nil {
			s.logger.Error().Err(err).
				Str("resource_id", res.ID).
				Str("group", candidate).
				Str("lang", lang).
				Msg("load mailbox failed")
			return nil, false, err
		}
		if mailbox != nil {
			return mailbox, true, nil
		}
	}
	return nil, false, nil
}

// handleReplicate runs one replication batch and reports every job's settled
// outcome. Up-front validation failures reject the whole batch.
func (s *Server) handleReplicate(c echo.Context) error {
	var req replicate.BatchRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a valid JSON replication request"})
	}

	result, err := s.coordinator.Replicate(c.Request().Context(), req)
	if err != nil {
		switch replicate.KindOf(err) {
		case replicate.KindValidation:
			return fail(c, http.StatusBadRequest, err.Error(), nil)
		case replicate.KindTooManyTargets:
			return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
		default:
			s.logger.Error().Err(err).Str("resource_id", req.ResourceID).Msg("replication batch failed to start")
			return internalError(c, "Failed to run replication batch")
		}
	}

	return success(c, result)
}
