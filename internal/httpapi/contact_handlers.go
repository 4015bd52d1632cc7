package httpapi

import (
	"context"
	"net/http"

	"voicecrm/internal/contacts"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

type contactRequest struct {
	PhoneNumber  string            `json:"phone_number"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	Email        string            `json:"email,omitempty"`
	Company      string            `json:"company,omitempty"`
	Status       string            `json:"status,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

func (h Handlers) CreateContact(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	if err := h.Users.CheckQuota(id, users.ResourceContacts); err != nil {
		h.logQuotaRejected(c, id, users.ResourceContacts)
		writeError(c, err)
		return
	}

	contact, err := h.Contacts.Create(id, contacts.Contact{
		PhoneNumber:  req.PhoneNumber,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Company:      req.Company,
		Status:       contacts.ContactStatus(req.Status),
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Users.RecordUsage(id, users.ResourceContacts); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// ListContacts supports optional status and tag filters.
func (h Handlers) ListContacts(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	switch {
	case c.Query("status") != "":
		c.JSON(http.StatusOK, h.Contacts.FindByStatus(id, contacts.ContactStatus(c.Query("status"))))
	case c.Query("tag") != "":
		c.JSON(http.StatusOK, h.Contacts.FindByTag(id, c.Query("tag")))
	default:
		c.JSON(http.StatusOK, h.Contacts.List(id))
	}
}

func (h Handlers) GetContact(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	contact, err := h.Contacts.Get(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

type contactPatch struct {
	PhoneNumber  *string           `json:"phone_number"`
	FirstName    *string           `json:"first_name"`
	LastName     *string           `json:"last_name"`
	Email        *string           `json:"email"`
	Company      *string           `json:"company"`
	Status       *string           `json:"status"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"custom_fields"`
	Notes        *string           `json:"notes"`
}

func (h Handlers) UpdateContact(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req contactPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	contact, err := h.Contacts.Update(id, c.Param("id"), func(ct *contacts.Contact) {
		if req.PhoneNumber != nil {
			ct.PhoneNumber = *req.PhoneNumber
		}
		if req.FirstName != nil {
			ct.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			ct.LastName = *req.LastName
		}
		if req.Email != nil {
			ct.Email = *req.Email
		}
		if req.Company != nil {
			ct.Company = *req.Company
		}
		if req.Status != nil {
			ct.Status = contacts.ContactStatus(*req.Status)
		}
		if req.Tags != nil {
			ct.Tags = req.Tags
		}
		if req.CustomFields != nil {
			ct.CustomFields = req.CustomFields
		}
		if req.Notes != nil {
			ct.Notes = *req.Notes
		}
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h Handlers) DeleteContact(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	if err := h.Contacts.Delete(id, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) logQuotaRejected(c *gin.Context, accountID, resource string) {
	if h.Audit == nil {
		return
	}
	_ = h.Audit.LogQuotaRejected(context.WithoutCancel(c.Request.Context()), accountID, c.ClientIP(), resource)
}
