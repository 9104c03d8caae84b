package worker

import (
	"github.com/spec-kit/candidate-identity-service/internal/service"
)

// StartAuditWorker registers lifecycle event handlers.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
