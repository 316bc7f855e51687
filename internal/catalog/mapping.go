package catalog

import "github.com/shopspring/decimal"

func svc(exoID int, name string, min, max int64, rateUSD float64, category string) ServiceInfo {
	return ServiceInfo{
		ExoID:    exoID,
		Name:     name,
		Min:      min,
		Max:      max,
		RateUSD:  decimal.NewFromFloat(rateUSD),
		Category: category,
	}
}

const noLimit = 2147483647

// mapping задаёт соответствие (платформа, внутренний id услуги) -> услуга панели.
// Идентификаторы и тарифы взяты из прайс-листа панели выполнения.
var mapping = map[string]map[int]ServiceInfo{
	"tiktok": {
		1: svc(3036, "Tiktok Followers (Average Quality)", 10, 1000000, 1.41, "Tiktok Followers"),
		2: svc(3037, "Tiktok Followers (High Quality)", 10, 1000000, 1.80, "Tiktok Followers"),
		3: svc(3048, "Tiktok Likes (Average Quality)", 10, 5000000, 0.05, "Tiktok Likes"),
		4: svc(3049, "TikTok Likes (High Quality)", 5, 5000000, 0.14, "Tiktok Likes"),
		5: svc(3047, "Tiktok Views (Average Quality)", 50, noLimit, 0.005, "Tiktok Views"),
		6: svc(3154, "Average Quality Comments", 1, 5000, 1.50, "Tiktok Custom Comments"),
	},
	"instagram": {
		10: svc(3106, "Instagram Followers ( Average Quality )", 10, 100000, 1.24, "Instagram Followers"),
		11: svc(3107, "Instagram Followers ( High Quality )", 10, 100000, 1.70, "Instagram Followers"),
		12: svc(2997, "Instagram Likes ( Average Quality )", 10, 100000, 0.21, "Instagram Likes"),
		13: svc(2998, "Instagram Likes ( High Quality )", 10, 100000, 0.30, "Instagram Likes"),
		14: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		15: svc(3109, "Instagram Video/Reel Views ( High Quality )", 10, noLimit, 0.005, "Instagram Video/Reel Views"),
		16: svc(3017, "Instagram Story Views ( High Quality )", 100, 12000, 0.21, "Instagram Story Views"),
		17: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		18: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		19: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		20: svc(3014, "Instagram Comments ( Average Quality )", 10, 10000, 6.00, "Instagram Comments"),
		21: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		22: svc(3108, "Instagram Video/Reel Views ( Average Quality )", 10, noLimit, 0.002, "Instagram Video/Reel Views"),
		23: svc(2997, "Instagram Likes ( Average Quality )", 10, 100000, 0.21, "Instagram Likes"),
	},
	"facebook": {
		30: svc(3123, "Facebook Page Followers ( Average Quality )", 100, 5000000, 0.62, "Facebook Page Followers"),
		31: svc(3124, "Facebook Page Followers ( High Quality )", 100, 5000000, 0.62, "Facebook Page Followers"),
		32: svc(3125, "Facebook Profile Followers ( Average Quality )", 100, 5000000, 0.62, "Facebook Profile Followers"),
		33: svc(3126, "Facebook Profile Followers ( High Quality )", 100, 5000000, 1.00, "Facebook Profile Followers"),
		34: svc(3129, "Facebook Post Likes (Average Quality)", 10, 500000, 0.14, "Facebook Post Likes"),
		35: svc(3130, "Facebook Post Likes (High Quality)", 10, 500000, 0.40, "Facebook Post Likes"),
		36: svc(3137, "Facebook Video/Reel Views (Average Quality)", 100, noLimit, 0.09, "Facebook Video/Reel Views"),
		37: svc(2975, "Facebook Post Shares (High Quality)", 10, 10000000, 0.90, "Facebook Post Shares"),
		38: svc(3139, "Facebook Custom Comments ( Male )", 10, 250, 91.00, "Facebook Comments"),
	},
	"youtube": {
		40: svc(3056, "YouTube Subscribers (Average Quality)", 50, 50000, 23.00, "Youtube Subscribers"),
		41: svc(3058, "YouTube Subscribers (High Quality)", 50, 50000, 26.00, "Youtube Subscribers"),
		42: svc(3061, "YouTube Views (Average Quality)", 100, 10000000, 1.00, "Youtube Views"),
		43: svc(3062, "YouTube Views (High Quality)", 100, 10000000, 1.40, "Youtube Views"),
		44: svc(3080, "YouTube Likes (Average Quality)", 10, 1000000, 0.27, "Youtube Likes"),
		45: svc(3061, "YouTube Views (Average Quality)", 100, 10000000, 1.00, "Youtube Views"),
		46: svc(3151, "Youtube Custom Comments (High Quality)", 10, 50000, 10.00, "Youtube Comments"),
		47: svc(3062, "YouTube Views (High Quality)", 100, 10000000, 1.40, "Youtube Views"),
	},
	"twitter": {
		50: svc(3146, "Twitter Likes (Average Quality)", 20, 1000, 0.80, "X/Twitter Likes"),
		51: svc(3145, "Twitter Likes (High Quality)", 20, 1000, 1.00, "X/Twitter Likes"),
		52: svc(3146, "Twitter Likes (Average Quality)", 20, 1000, 0.80, "X/Twitter Likes"),
		53: svc(3145, "Twitter Likes (High Quality)", 20, 1000, 1.00, "X/Twitter Likes"),
		54: svc(3147, "Twitter Retweets (Average Quality)", 10, 150, 7.00, "X/Twitter Retweets/Reposts"),
		55: svc(3148, "Twitter Retweets (High Quality)", 5, 50, 7.50, "X/Twitter Retweets/Reposts"),
		56: svc(3146, "Twitter Likes (Average Quality)", 20, 1000, 0.80, "X/Twitter Likes"),
		57: svc(3146, "Twitter Likes (Average Quality)", 20, 1000, 0.80, "X/Twitter Likes"),
	},
	"telegram": {
		60: svc(3143, "Telegram Members (Average Quality)", 500, 200000, 1.00, "Telegram Members"),
		61: svc(3144, "Telegram Members (High Quality)", 500, 200000, 1.40, "Telegram Members"),
		62: svc(2801, "Telegram Views (High quality)", 10, noLimit, 0.028, "Telegram Post Views"),
		63: svc(2733, "Telegram - Positive reactions", 10, 1000000, 0.06, "Telegram Reactions"),
		64: svc(2738, "Telegram - Reactions (Like)", 10, 1000000, 0.06, "Telegram Reactions"),
		65: svc(2735, "Telegram - Reactions (Heart)", 10, 1000000, 0.06, "Telegram Reactions"),
	},
	"whatsapp": {
		70: svc(2880, "Whatsapp Channel Members (Global)", 10, 50000, 2.50, "Whatsapp Channel Members"),
		71: svc(2891, "Whatsapp Channel Emoji Reactions (Mix)", 10, 50000, 1.20, "Whatsapp Channel Emoji Reactions"),
		72: svc(2892, "Whatsapp Channel Emoji Reactions (Like)", 10, 50000, 1.20, "Whatsapp Channel Emoji Reactions"),
		73: svc(2893, "Whatsapp Channel Emoji Reactions (Heart)", 10, 50000, 1.20, "Whatsapp Channel Emoji Reactions"),
	},
}
