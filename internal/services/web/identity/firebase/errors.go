package firebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
)

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type classified struct {
	kind identity.Kind
	code string
}

// Identity Toolkit messages come as "CODE" or "CODE : detail"; securetoken
// uses the same codes.
var messageCodes = map[string]classified{
	"EMAIL_EXISTS":                   {identity.KindCredential, identity.CodeEmailInUse},
	"WEAK_PASSWORD":                  {identity.KindCredential, identity.CodeWeakPassword},
	"INVALID_EMAIL":                  {identity.KindCredential, identity.CodeInvalidEmail},
	"MISSING_EMAIL":                  {identity.KindCredential, identity.CodeInvalidEmail},
	"MISSING_PASSWORD":               {identity.KindCredential, identity.CodeWeakPassword},
	"EMAIL_NOT_FOUND":                {identity.KindInvalidCredentials, identity.CodeUserNotFound},
	"USER_NOT_FOUND":                 {identity.KindInvalidCredentials, identity.CodeUserNotFound},
	"INVALID_PASSWORD":               {identity.KindInvalidCredentials, identity.CodeWrongPassword},
	"INVALID_LOGIN_CREDENTIALS":      {identity.KindInvalidCredentials, identity.CodeInvalidCredential},
	"INVALID_IDP_RESPONSE":           {identity.KindInvalidCredentials, identity.CodeInvalidCredential},
	"USER_DISABLED":                  {identity.KindInvalidCredentials, identity.CodeUserDisabled},
	"TOO_MANY_ATTEMPTS_TRY_LATER":    {identity.KindTooManyAttempts, identity.CodeTooManyRequests},
	"TOKEN_EXPIRED":                  {identity.KindTokenExpired, identity.CodeTokenExpired},
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": {identity.KindTokenExpired, identity.CodeTokenExpired},
	"INVALID_ID_TOKEN":               {identity.KindInvalidCredentials, identity.CodeInvalidToken},
	"INVALID_REFRESH_TOKEN":          {identity.KindTokenExpired, identity.CodeInvalidToken},
	"INVALID_GRANT_TYPE":             {identity.KindInvalidCredentials, identity.CodeInvalidToken},
	"MISSING_REFRESH_TOKEN":          {identity.KindTokenExpired, identity.CodeInvalidToken},
	"OPERATION_NOT_ALLOWED":          {identity.KindUnsupported, identity.CodeOperationForbidden},
	"ADMIN_ONLY_OPERATION":           {identity.KindUnsupported, identity.CodeOperationForbidden},
}

func decodeError(status int, body []byte) error {
	if status >= http.StatusInternalServerError {
		return identity.Networkf("identity toolkit returned %d", status)
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		if status == http.StatusTooManyRequests {
			return identity.E(identity.KindTooManyAttempts, identity.CodeTooManyRequests, nil)
		}
		return identity.Networkf("identity toolkit returned %d", status)
	}
	message := env.Error.Message
	code, _, _ := strings.Cut(message, " ")
	code = strings.TrimSpace(code)
	if c, ok := messageCodes[code]; ok {
		return identity.E(c.kind, c.code, errors.New(message))
	}
	if strings.HasPrefix(code, "WEAK_PASSWORD") {
		return identity.E(identity.KindCredential, identity.CodeWeakPassword, errors.New(message))
	}
	return fmt.Errorf("identity toolkit %d: %s", status, message)
}
