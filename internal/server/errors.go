package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	approvaldomain "github.com/openprocure/procura/internal/approval/domain"
	auditdomain "github.com/openprocure/procura/internal/audit/domain"
	"github.com/openprocure/procura/internal/authorization"
	expenseaccountdomain "github.com/openprocure/procura/internal/expenseaccount/domain"
	organizationdomain "github.com/openprocure/procura/internal/organization/domain"
	projectdomain "github.com/openprocure/procura/internal/project/domain"
	requisitiondomain "github.com/openprocure/procura/internal/requisition/domain"
	signupdomain "github.com/openprocure/procura/internal/signup/domain"
	"github.com/openprocure/procura/internal/tenant"
	workflowdomain "github.com/openprocure/procura/internal/workflow/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isPermissionError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
			Code:    permissionErrorCode(err),
		}
	case errors.Is(err, signupdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Code:    err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, tenant.ErrNoOrganizationSelected),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidPlan),
		errors.Is(err, organizationdomain.ErrInvalidRole),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidBudget),
		errors.Is(err, expenseaccountdomain.ErrInvalidCode),
		errors.Is(err, expenseaccountdomain.ErrInvalidName),
		errors.Is(err, workflowdomain.ErrInvalidName),
		errors.Is(err, workflowdomain.ErrInvalidThresholds),
		errors.Is(err, workflowdomain.ErrInvalidApproverCount),
		errors.Is(err, workflowdomain.ErrInvalidApprovalRoles),
		errors.Is(err, workflowdomain.ErrInvalidAmount),
		errors.Is(err, requisitiondomain.ErrInvalidTitle),
		errors.Is(err, requisitiondomain.ErrInvalidStatusFilter),
		errors.Is(err, requisitiondomain.ErrInvalidQuantity),
		errors.Is(err, requisitiondomain.ErrInvalidUnitPrice),
		errors.Is(err, requisitiondomain.ErrEmptyLineItems),
		errors.Is(err, requisitiondomain.ErrZeroTotalAmount),
		errors.Is(err, approvaldomain.ErrInvalidDecision),
		errors.Is(err, auditdomain.ErrInvalidEventType),
		errors.Is(err, auditdomain.ErrInvalidSeverity),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, signupdomain.ErrInvalidOwner),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isPermissionError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, tenant.ErrAccessDenied),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, organizationdomain.ErrNotMember),
		errors.Is(err, organizationdomain.ErrOrganizationSuspended),
		errors.Is(err, organizationdomain.ErrOrganizationCancelled),
		errors.Is(err, requisitiondomain.ErrNotOwner),
		errors.Is(err, approvaldomain.ErrRoleNotEligible):
		return true
	default:
		return false
	}
}

func permissionErrorCode(err error) string {
	switch {
	case errors.Is(err, organizationdomain.ErrOrganizationSuspended),
		errors.Is(err, organizationdomain.ErrOrganizationCancelled),
		errors.Is(err, requisitiondomain.ErrNotOwner),
		errors.Is(err, approvaldomain.ErrRoleNotEligible):
		return err.Error()
	default:
		return ""
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, organizationdomain.ErrSlugTaken),
		errors.Is(err, organizationdomain.ErrInvalidStatusChange),
		errors.Is(err, organizationdomain.ErrRequisitionQuotaReached),
		errors.Is(err, organizationdomain.ErrMemberQuotaReached),
		errors.Is(err, projectdomain.ErrProjectQuota),
		errors.Is(err, projectdomain.ErrProjectClosed),
		errors.Is(err, expenseaccountdomain.ErrCodeTaken),
		errors.Is(err, workflowdomain.ErrNoApplicableWorkflow),
		errors.Is(err, requisitiondomain.ErrInvalidTransition),
		errors.Is(err, requisitiondomain.ErrNotDraft),
		errors.Is(err, requisitiondomain.ErrConcurrentUpdate),
		errors.Is(err, requisitiondomain.ErrBudgetExceeded),
		errors.Is(err, approvaldomain.ErrChainAlreadyResolved),
		errors.Is(err, approvaldomain.ErrNoWorkflowBound):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, expenseaccountdomain.ErrNotFound),
		errors.Is(err, workflowdomain.ErrNotFound),
		errors.Is(err, requisitiondomain.ErrNotFound),
		errors.Is(err, requisitiondomain.ErrItemNotFound),
		errors.Is(err, approvaldomain.ErrDecisionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	_ = status
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
