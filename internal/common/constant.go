package common

// AccessTokenHeaderName is the gRPC metadata key that may carry a bare
// access token. HTTP clients use the Authorization header instead.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName carries "Bearer <token>" over HTTP and gRPC.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the token type returned to clients.
const BearerScheme = "Bearer"
