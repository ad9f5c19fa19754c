package x

import (
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	// GraphQLBase is the web client's GraphQL root
	GraphQLBase = "https://x.com/i/api/graphql"
	// APIBase hosts the guest token and onboarding (login) endpoints
	APIBase = "https://api.twitter.com"
)

// BearerToken is the public web-app bearer token
const BearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

// Endpoint is a GraphQL operation with its query id
type Endpoint struct {
	ID   string
	Name string
}

// Path returns the operation path below the GraphQL root
func (e Endpoint) Path() string {
	return fmt.Sprintf("/%s/%s", e.ID, e.Name)
}

var (
	userByScreenName = Endpoint{ID: "1VOOyvKkiI3FMmkeDNxM9A", Name: "UserByScreenName"}
	userTweets       = Endpoint{ID: "HeWHY26ItCfUmm1e6ITjeA", Name: "UserTweets"}
)

// graphQLURL encodes variables and the feature flags onto an operation URL
func graphQLURL(base string, e Endpoint, variables map[string]any) (string, error) {
	v, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}
	f, err := json.Marshal(features())
	if err != nil {
		return "", fmt.Errorf("encode features: %w", err)
	}
	q := url.Values{}
	q.Set("variables", string(v))
	q.Set("features", string(f))
	return base + e.Path() + "?" + q.Encode(), nil
}

func userByScreenNameVariables(handle string) map[string]any {
	return map[string]any{
		"screen_name":              handle,
		"withSafetyModeUserFields": true,
	}
}

func userTweetsVariables(userID, cursor string, count int) map[string]any {
	v := map[string]any{
		"userId":                                 userID,
		"count":                                  count,
		"includePromotedContent":                 false,
		"withQuickPromoteEligibilityTweetFields": true,
		"withVoice":                              true,
		"withV2Timeline":                         true,
	}
	if cursor != "" {
		v["cursor"] = cursor
	}
	return v
}

// features are the GraphQL feature switches the web client sends
func features() map[string]any {
	return map[string]any{
		"articles_preview_enabled":                                                false,
		"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
		"communities_web_enable_tweet_community_results_fetch":                    true,
		"creator_subscriptions_quote_tweet_preview_enabled":                       false,
		"creator_subscriptions_tweet_preview_api_enabled":                         true,
		"freedom_of_speech_not_reach_fetch_enabled":                               true,
		"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
		"longform_notetweets_consumption_enabled":                                 true,
		"longform_notetweets_inline_media_enabled":                                true,
		"longform_notetweets_rich_text_read_enabled":                              true,
		"premium_content_api_read_enabled":                                        false,
		"responsive_web_edit_tweet_api_enabled":                                   true,
		"responsive_web_enhance_cards_enabled":                                    false,
		"responsive_web_graphql_exclude_directive_enabled":                        true,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
		"responsive_web_graphql_timeline_navigation_enabled":                      true,
		"responsive_web_twitter_article_tweet_consumption_enabled":                true,
		"rweb_tipjar_consumption_enabled":                                         true,
		"rweb_video_timestamps_enabled":                                           true,
		"standardized_nudges_misinfo":                                             true,
		"tweet_awards_web_tipping_enabled":                                        false,
		"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
		"tweet_with_visibility_results_prefer_gql_media_interstitial_enabled":     false,
		"verified_phone_label_enabled":                                            false,
		"view_counts_everywhere_api_enabled":                                      true,
	}
}
