// Package app wires the HTTP handlers into a gin router
package app

import (
	"fmt"
	"net/http"
	"time"

	"bitwise74/drop-api/app/drop"
	"bitwise74/drop-api/app/root"
	"bitwise74/drop-api/app/uploads"
	"bitwise74/drop-api/app/user"
	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	CorsOrigins []string
	// Requests per second per client IP, 0 disables the limiter
	RateLimit int
	Turnstile middleware.TurnstileConfig
	// Cache lifetime of public profiles
	ProfileCacheTTL time.Duration
}

// OptionsFromConfig reads router options from the loaded configuration
func OptionsFromConfig() Options {
	return Options{
		CorsOrigins: viper.GetStringSlice("host.cors_origins"),
		RateLimit:   viper.GetInt("security.rate_limit"),
		Turnstile: middleware.TurnstileConfig{
			Enabled: viper.GetBool("cloudflare.turnstile.enabled"),
			Secret:  viper.GetString("cloudflare.turnstile.secret_token"),
		},
		ProfileCacheTTL: 15 * time.Second,
	}
}

type API struct {
	Router *gin.Engine

	limiter *middleware.RateLimiter
	cache   *persist.MemoryStore
}

// Close releases the background resources held by the router
func (a *API) Close() error {
	return a.limiter.Close()
}

func NewRouter(d *internal.Deps, o Options) *API {
	a := &API{
		Router: gin.New(),
		limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: o.RateLimit,
			Burst:             o.RateLimit * 2,
		}),
		cache: persist.NewMemoryStore(time.Minute),
	}

	router := a.Router

	origins := o.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken", "Range"},
			ExposeHeaders:    []string{"Content-Length", "Content-Range", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.NewRequestIDMiddleware(),
		gin.CustomRecovery(recovery),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 8 << 20

	// GET /uploads/*key		-> Serves objects of the local storage backend.
	// Not rate limited, downloads are proxied through here from our own address.
	router.GET("/uploads/*key", func(c *gin.Context) { uploads.UploadServe(c, d) })

	router.Use(a.limiter.Middleware())

	jwt := middleware.NewJWTMiddleware(d.Tokens, d.Users)
	optionalJWT := middleware.NewOptionalJWTMiddleware(d.Tokens, d.Users)
	turnstile := middleware.NewTurnstileMiddleware(o.Turnstile)
	jsonBody := middleware.BodySizeLimiter(1 << 20)

	// HEAD /heartbeat		-> Used to check if the server is alive
	router.HEAD("/heartbeat", root.Heartbeat)

	// GET /health			-> Checks that the database answers
	router.GET("/health", func(c *gin.Context) { root.Health(c, d) })

	drops := router.Group("/drops")
	{
		// GET /drops			-> Lists public drops and the caller's own drops
		drops.GET("", optionalJWT, func(c *gin.Context) { drop.DropList(c, d) })

		// POST /drops			-> Creates a new drop
		drops.POST("", jwt, jsonBody, func(c *gin.Context) { drop.DropCreate(c, d) })

		// GET /drops/:dropCode		-> Returns drop metadata
		drops.GET("/:dropCode", optionalJWT, func(c *gin.Context) { drop.DropFetch(c, d) })

		// PATCH /drops/:dropCode	-> Updates a drop owned by the caller
		drops.PATCH("/:dropCode", jwt, jsonBody, func(c *gin.Context) { drop.DropEdit(c, d) })

		// DELETE /drops/:dropCode	-> Deletes a drop and all of its media
		drops.DELETE("/:dropCode", jwt, func(c *gin.Context) { drop.DropDelete(c, d) })

		// POST /drops/:dropCode/unlock	-> Returns signed media URLs if access is granted
		drops.POST("/:dropCode/unlock", optionalJWT, jsonBody, func(c *gin.Context) { drop.DropUnlock(c, d) })

		// POST /drops/:dropCode/media	-> Appends a photo or video to a drop
		drops.POST("/:dropCode/media", jwt, middleware.BodySizeLimiter(d.MaxUploadSize+1<<20), func(c *gin.Context) { drop.DropMediaUpload(c, d) })

		// GET /drops/:dropCode/media/:mediaId/download -> Streams a single media item
		drops.GET("/:dropCode/media/:mediaId/download", optionalJWT, func(c *gin.Context) { drop.DropMediaDownload(c, d) })
	}

	users := router.Group("/users")
	{
		// POST /users/signup		-> Registers a new user
		users.POST("/signup", turnstile, jsonBody, func(c *gin.Context) { user.UserSignup(c, d) })

		// POST /users/login		-> Logs in a user and returns a JWT token
		users.POST("/login", jsonBody, func(c *gin.Context) { user.UserLogin(c, d) })

		// GET /users/profile		-> Returns the caller's profile
		users.GET("/profile", jwt, func(c *gin.Context) { user.UserProfile(c, d) })

		// PUT /users/profile		-> Updates the caller's profile
		users.PUT("/profile", jwt, jsonBody, func(c *gin.Context) { user.UserProfileEdit(c, d) })

		// POST /users/profile-picture	-> Replaces the caller's profile picture
		users.POST("/profile-picture", jwt, middleware.BodySizeLimiter(user.MaxPictureSize+1<<20), func(c *gin.Context) { user.UserProfilePicture(c, d) })

		// GET /users/profile/:id	-> Returns a user's public profile
		users.GET("/profile/:id", optionalJWT, a.cacheFor(o.ProfileCacheTTL), func(c *gin.Context) { user.UserPublicProfile(c, d) })
	}

	return a
}

// recovery turns panics into 500s. Aborted streams are re-panicked so the
// server drops the connection instead of appending an error body.
func recovery(c *gin.Context, recovered any) {
	if recovered == http.ErrAbortHandler {
		panic(http.ErrAbortHandler)
	}

	apperr.Respond(c, apperr.Internal(fmt.Errorf("panic: %v", recovered)))
}

// cacheFor caches responses per URI and per caller so owners and visitors
// never see each other's view
func (a *API) cacheFor(ttl time.Duration) gin.HandlerFunc {
	return cache.Cache(a.cache, ttl, cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
		return true, cache.Strategy{
			CacheKey: c.Request.RequestURI + "|" + c.GetString("userID"),
		}
	}))
}
