// Package chat connects the greeter to a chat network.
//
// It provides two transports that satisfy greeter.Conn:
//   - Dial: a plain TCP IRC connection. Lines are framed with CRLF on the way
//     out and delivered one per receive on the way in. Register performs the
//     USER/NICK handshake, the optional NickServ identification and the
//     initial JOIN.
//   - DialTwitch: an adapter over go-twitch-irc. Raw protocol lines seen by
//     the client are fed to the greeter unchanged apart from IRCv3 tags, and
//     channel PRIVMSG lines are sent with Say. Keep-alive is handled by the
//     client library, so PONG lines from the greeter are dropped.
//
// Credentials: Twitch chat needs a bot username and an OAuth token with
// chat:read/chat:edit scopes. If TWITCH_OAUTH_TOKEN is not provided, the
// token is obtained with a refresh grant (see package oauth).
package chat
