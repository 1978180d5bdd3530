// Package twilioapi implements core.Provider against the Twilio REST API.
//
// Messages are created with POST /2010-04-01/Accounts/{AccountSid}/Messages.json
// and calls with POST /2010-04-01/Accounts/{AccountSid}/Calls.json. Requests
// are form encoded and authenticated with the account SID and auth token.
package twilioapi
