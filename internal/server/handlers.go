package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/domain"
	"DeliberoScan/internal/usecase"
)

type handlers struct {
	deps Deps
}

func (h *handlers) sync(c *fiber.Ctx) error {
	var req usecase.SyncRequest
	// an empty or absent body means "current year, default sector"
	_ = c.BodyParser(&req)

	report, err := h.deps.Pipeline.Sync(c.Context(), req)
	if err != nil {
		h.logError("sync failed", err)
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"found":       report.Found,
		"alreadyInDb": report.AlreadyInDB,
		"processed":   report.Processed,
		"successful":  report.Successful,
		"results":     report.Results,
	})
}

type processRequest struct {
	URL string `json:"url"`
}

func (h *handlers) process(c *fiber.Ctx) error {
	var req processRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		return writeError(c, apperr.Validation("URL is required"))
	}

	delibera, err := h.deps.Pipeline.ProcessOne(c.Context(), req.URL)
	if err != nil {
		h.logError("process failed", err)
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": delibera})
}

func (h *handlers) scrape(c *fiber.Ctx) error {
	var req processRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		return writeError(c, apperr.Validation("URL is required"))
	}

	result, err := h.deps.Scraper.Scrape(c.Context(), req.URL)
	if err != nil {
		h.logError("scrape failed", err)
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}

type analyzeRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

type analyzeResponse struct {
	Numero                    string                 `json:"numero"`
	Titolo                    string                 `json:"titolo"`
	DataPubblicazione         string                 `json:"data_pubblicazione,omitempty"`
	Riassunto                 string                 `json:"riassunto"`
	PuntiSalienti             []domain.PuntoSaliente `json:"punti_salienti"`
	Settori                   []string               `json:"settori"`
	IsAggiornamentoTariffario bool                   `json:"is_aggiornamento_tariffario"`
}

func (h *handlers) analyze(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Unauthorized",
		})
	}

	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return writeError(c, apperr.Validation("Text is required"))
	}

	extraction, err := h.deps.Extractor.Extract(c.Context(), req.Text, req.Title)
	if err != nil {
		h.logError("analyze failed", err)
		return writeError(c, err)
	}

	resp := analyzeResponse{
		Numero:                    extraction.Numero,
		Titolo:                    extraction.Titolo,
		Riassunto:                 extraction.Riassunto,
		PuntiSalienti:             extraction.PuntiSalienti,
		Settori:                   extraction.Settori,
		IsAggiornamentoTariffario: extraction.IsAggiornamentoTariffario,
	}
	if !extraction.DataPubblicazione.IsZero() {
		resp.DataPubblicazione = extraction.DataPubblicazione.Format("2006-01-02")
	}

	return c.JSON(fiber.Map{"success": true, "data": resp})
}

type otpRequest struct {
	Action      string `json:"action"`
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

func (h *handlers) otp(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Richiesta non valida"))
	}

	switch req.Action {
	case "send":
		result, err := h.deps.OTP.Send(c.Context(), req.PhoneNumber)
		if err != nil {
			h.logError("otp send failed", err)
			return writeError(c, err)
		}
		if result.AlreadyVerified {
			return c.JSON(fiber.Map{"success": true, "already_verified": true})
		}
		return c.JSON(fiber.Map{"success": true, "message": "OTP inviato su WhatsApp"})

	case "verify":
		result, err := h.deps.OTP.Verify(c.Context(), req.PhoneNumber, req.OTPCode)
		if err != nil {
			h.logError("otp verify failed", err)
			return writeError(c, err)
		}
		if result.AlreadyVerified {
			return c.JSON(fiber.Map{"success": true, "already_verified": true})
		}
		return c.JSON(fiber.Map{"success": true, "verified": true})

	case "check":
		verified, err := h.deps.OTP.Check(c.Context(), req.PhoneNumber)
		if err != nil {
			h.logError("otp check failed", err)
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "verified": verified})

	default:
		return writeError(c, apperr.Validation("Azione non valida. Usa: send, verify, check"))
	}
}

func (h *handlers) authorized(c *fiber.Ctx) bool {
	token := h.deps.BearerToken
	if token == "" {
		return false
	}
	header := c.Get(fiber.HeaderAuthorization)
	return strings.TrimPrefix(header, "Bearer ") == token
}

func (h *handlers) logError(msg string, err error) {
	if h.deps.Logger != nil {
		h.deps.Logger.Error(msg, "error", err)
	}
}
