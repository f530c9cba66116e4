// Package auth provides AuthenticateRequest hooks for a switchboard server.
//
// Two schemes are supported, alone or together:
//
//   - HTTP Basic, checked against a keybackend.SecretStore (access key as
//     user name, secret as password).
//   - AWS Signature V4 presigned URLs (X-Amz-* query parameters), the same
//     scheme S3 clients use, verified against the same store.
//
// A successful hook records the access key in the request context under
// AccessKeyMetadata and lets the pipeline continue. A failed one answers 401
// with a JSON body and a WWW-Authenticate challenge:
//
//	store, _ := keybackend.NewSecretStore(cfg.Auth.Keys)
//	server.Routes.AuthenticateRequest = auth.NewHook(auth.Config{
//	    Authenticators: []auth.Authenticator{
//	        auth.NewBasic(store, "switchboard"),
//	        auth.NewVerifier("us-east-1", "s3", store),
//	    },
//	    PublicPaths: []string{"/healthz"},
//	})
//
// Presigner creates URLs the Verifier accepts.
package auth
