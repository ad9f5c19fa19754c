package x

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"

	"xscraper/pkg/backoff"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Credentials are the inputs to the password login flow
type Credentials struct {
	Username   string
	Email      string
	Password   string
	TOTPSecret string
}

// maxLoginRounds bounds the number of subtasks one login may walk through
const maxLoginRounds = 12

// stepAttempts is how often a single flow request is retried on transient failure
const stepAttempts = 3

const loginFlowPayload = `{"input_flow_data":{"flow_context":{"debug_overrides":{},"start_location":{"location":"splash_screen"}}},"subtask_versions":{"action_list":2,"alert_dialog":1,"app_download_cta":1,"check_logged_in_account":1,"choice_selection":3,"contacts_live_sync_permission_prompt":0,"cta":7,"email_verification":2,"end_flow":1,"enter_date":1,"enter_email":2,"enter_password":5,"enter_phone":2,"enter_recaptcha":1,"enter_text":5,"enter_username":2,"generic_urt":3,"in_app_notification":1,"interest_picker":3,"js_instrumentation":1,"menu_dialog":1,"notifications_permission_prompt":2,"open_account":2,"open_home_timeline":1,"open_link":1,"phone_verification":4,"privacy_options":1,"security_key":3,"select_avatar":4,"select_banner":2,"settings_list":7,"show_code":1,"sign_up":2,"sign_up_review":4,"tweet_selection_urt":1,"update_users":1,"upload_media":1,"user_recommendations_list":4,"user_recommendations_urt":1,"wait_spinner":3,"web_modal":1}}`

type flowResponse struct {
	FlowToken string `json:"flow_token"`
	Subtasks  []struct {
		SubtaskID string `json:"subtask_id"`
	} `json:"subtasks"`
}

func (f *flowResponse) next() string {
	if f == nil || len(f.Subtasks) == 0 {
		return ""
	}
	return f.Subtasks[0].SubtaskID
}

// loginFlow carries the cookie jar and guest token across flow steps
type loginFlow struct {
	opts       Options
	http       *http.Client
	jar        http.CookieJar
	guestToken string
	logger     logger.Logger
}

// Login walks X's onboarding login flow and returns the session cookies
func Login(ctx context.Context, creds Credentials, opts Options) (*Token, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, errs.NewAuth("login requires username and password", nil)
	}
	opts = opts.withDefaults()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := *opts.HTTPClient
	client.Jar = jar

	f := &loginFlow{
		opts:   opts,
		http:   &client,
		jar:    jar,
		logger: opts.Logger.WithFields(map[string]interface{}{"component": "login", "user": creds.Username}),
	}
	f.logger.Info("Logging in")

	f.guestToken, err = backoff.Retry(ctx, stepAttempts, backoff.DefaultExponential(), f.logger, func() (string, error) {
		return f.activateGuest(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get guest token: %w", err)
	}

	fr, err := f.step(ctx, "/1.1/onboarding/task.json?flow_name=login", loginFlowPayload)
	if err != nil {
		return nil, fmt.Errorf("init login flow: %w", err)
	}

	for round := 0; round < maxLoginRounds; round++ {
		subtask := fr.next()
		if subtask == "" || subtask == "LoginSuccessSubtask" || subtask == "AccountDuplicationCheck" {
			break
		}
		f.logger.DebugWithFields("Login subtask", map[string]interface{}{"subtask": subtask})

		var input map[string]any
		switch subtask {
		case "LoginJsInstrumentationSubtask":
			input = map[string]any{"js_instrumentation": map[string]any{"response": `{"rf":{"a":"b"},"s":"s"}`, "link": "next_link"}}
		case "LoginEnterUserIdentifierSSO":
			input = map[string]any{"settings_list": map[string]any{
				"setting_responses": []any{map[string]any{
					"key":           "user_identifier",
					"response_data": map[string]any{"text_data": map[string]any{"result": creds.Username}},
				}},
				"link": "next_link",
			}}
		case "LoginEnterPassword":
			input = map[string]any{"enter_password": map[string]any{"password": creds.Password, "link": "next_link"}}
		case "LoginTwoFactorAuthChallenge":
			if creds.TOTPSecret == "" {
				return nil, errs.NewAuth("two-factor code required but no TOTP secret configured", nil)
			}
			code, err := totp.GenerateCode(creds.TOTPSecret, opts.Now())
			if err != nil {
				return nil, errs.NewAuth("generate TOTP code", err)
			}
			input = map[string]any{"enter_text": map[string]any{"text": code, "link": "next_link"}}
		case "LoginEnterAlternateIdentifierSubtask", "LoginAcid":
			id := creds.Email
			if id == "" {
				id = creds.Username
			}
			input = map[string]any{"enter_text": map[string]any{"text": id, "link": "next_link"}}
		case "DenyLoginSubtask":
			return nil, errs.NewAuth("login denied (account may be locked or disabled)", nil)
		case "LoginArkoseChallenge", "LoginArkoseCaptcha", "LoginEnterRecaptcha":
			return nil, errs.NewAuth("login requires a captcha; import a browser session instead", nil)
		default:
			f.logger.WarnWithFields("Unknown login subtask, skipping", map[string]interface{}{"subtask": subtask})
			input = map[string]any{"action_list": map[string]any{"link": "next_link"}}
		}

		input["subtask_id"] = subtask
		payload, err := json.Marshal(map[string]any{
			"flow_token":     fr.FlowToken,
			"subtask_inputs": []any{input},
		})
		if err != nil {
			return nil, err
		}
		fr, err = f.step(ctx, "/1.1/onboarding/task.json", string(payload))
		if err != nil {
			return nil, fmt.Errorf("login subtask %s: %w", subtask, err)
		}
	}

	token, err := f.token(creds.Username)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Login successful")
	return token, nil
}

func (f *loginFlow) headers(req *http.Request) {
	req.Header.Set("authorization", "Bearer "+BearerToken)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-twitter-active-user", "yes")
	req.Header.Set("x-twitter-client-language", "en")
	req.Header.Set("user-agent", f.opts.UserAgent)
	if f.guestToken != "" {
		req.Header.Set("x-guest-token", f.guestToken)
	}
	if ct0 := f.cookie("ct0"); ct0 != "" {
		req.Header.Set("x-csrf-token", ct0)
	}
}

// post sends one request and classifies transport and status failures.
// Server-side and network faults stay retryable; anything else is a
// rejected login
func (f *loginFlow) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.APIBase+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	f.headers(req)

	resp, err := f.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.NewConnectivity("login request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewConnectivity("login response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.NewRateLimited("login: HTTP 429", parseRateLimitReset(resp.Header.Get("x-rate-limit-reset")))
	case resp.StatusCode >= 500:
		return nil, errs.NewTransient(fmt.Sprintf("login: HTTP %d", resp.StatusCode), nil)
	default:
		msg := fmt.Sprintf("login: HTTP %d", resp.StatusCode)
		if be := bodyErrors(data); len(be) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, be[0].Message)
		}
		return nil, errs.NewAuth(msg, nil)
	}
}

func (f *loginFlow) activateGuest(ctx context.Context) (string, error) {
	body, err := f.post(ctx, "/1.1/guest/activate.json", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.GuestToken == "" {
		return "", errs.NewTransient("empty guest token in response", err)
	}
	return resp.GuestToken, nil
}

func (f *loginFlow) step(ctx context.Context, path, payload string) (*flowResponse, error) {
	return backoff.Retry(ctx, stepAttempts, backoff.DefaultExponential(), f.logger, func() (*flowResponse, error) {
		body, err := f.post(ctx, path, []byte(payload))
		if err != nil {
			return nil, err
		}
		var fr flowResponse
		if err := json.Unmarshal(body, &fr); err != nil {
			return nil, errs.NewTransient("parse flow response", err)
		}
		if fr.FlowToken == "" {
			return nil, errs.NewAuth("empty flow_token: "+truncate(body, 200), nil)
		}
		return &fr, nil
	})
}

func (f *loginFlow) cookie(name string) string {
	u, err := url.Parse(f.opts.APIBase)
	if err != nil {
		return ""
	}
	for _, c := range f.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (f *loginFlow) token(username string) (*Token, error) {
	authToken := f.cookie("auth_token")
	if authToken == "" {
		return nil, errs.NewAuth("login completed but no auth_token cookie was set", nil)
	}
	ct0 := f.cookie("ct0")
	if ct0 == "" {
		ct0 = generateCT0()
	}
	return &Token{AuthToken: authToken, CT0: ct0, Username: username, SavedAt: time.Now()}, nil
}

// generateCT0 makes a random csrf token when the server did not issue one
func generateCT0() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(b)
}
