// Package authsdk is a Go client for the authsvc session API.
//
// A session starts with a login and holds three values: the bearer token,
// the refresh token and the fingerprint secret the bearer token is bound to.
// The server hands the secret out as an HttpOnly cookie; the SDK keeps it
// next to the tokens and presents it on every authenticated request and on
// refresh.
//
//	client := authsdk.NewSDKClient("https://auth.example.com")
//	session, err := client.Login(ctx, "alice", "correct horse")
//	if err != nil {
//		return err
//	}
//	info, err := session.UserInfo(ctx)
//
// Session methods refresh the bearer token shortly before it expires. Every
// refresh rotates the refresh token; the previous value is dead afterwards and
// presenting it again revokes the whole session.
package authsdk
