package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/remoteconfig"
	"storefront/internal/storage"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

type routes struct {
	env          config.Config
	db           *mongo.Database
	images       *storage.LocalStore
	colors       *remoteconfig.Store
	catalog      handlers.CatalogConfig
	session      handlers.SessionConfig
	limited      gin.HandlerFunc
	reservations handlers.ReservationNotifier
	invites      handlers.InviteNotifier
}

// engine registers every route. JSON endpoints live under /api and
// /admin/api; everything else falls through to the static site.
func (rt routes) engine() *gin.Engine {
	env, db := rt.env, rt.db

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), metrics.Middleware(), cors.New(corsConfig(env.CORSOrigins)))

	r.GET("/healthz", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static(env.UploadBaseURL, env.UploadDir)

	api := r.Group("/api")
	{
		api.POST("/auth/session", handlers.CreateSession(db, rt.session))
		api.GET("/auth/me", middleware.UserAuth(env.JWTSecret), handlers.GetMe(db))

		api.GET("/products", handlers.GetProducts(db))
		api.GET("/products/:id", handlers.GetProduct(db))
		api.GET("/products/:id/ratings", handlers.GetProductRatings(db))
		api.POST("/products/:id/ratings", rt.limited, middleware.UserAuth(env.JWTSecret), handlers.CreateRating(db))
		api.GET("/categories", handlers.GetCategories(db))
		api.GET("/categories/tree", handlers.GetCategoryTree(db))
		api.POST("/reservations", rt.limited, handlers.CreateReservation(db, rt.reservations))
		api.GET("/settings/:key", handlers.GetPublicSetting(db))
		api.GET("/coupons/:code", handlers.GetCoupon(db))

		api.POST("/notify/reservation", rt.limited, handlers.NotifyReservation(rt.reservations))
		api.GET("/remote-config/colors", handlers.GetColorConfig(rt.colors))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(env.JWTSecret, middleware.UserDirectory{Users: db.Collection("users")}))
	{
		admin.GET("/dashboard", handlers.AdminDashboard(db))

		admin.GET("/products", handlers.AdminListProducts(db))
		admin.POST("/products", handlers.CreateProduct(db, rt.catalog))
		admin.PUT("/products/:id", handlers.UpdateProduct(db, rt.catalog))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db, rt.catalog))

		admin.GET("/categories", handlers.AdminListCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.GET("/reservations", handlers.AdminListReservations(db))
		admin.GET("/reservations/:id", handlers.AdminGetReservation(db))
		admin.PUT("/reservations/:id/status", handlers.UpdateReservationStatus(db, env.StrictStatus))
		admin.DELETE("/reservations/:id", handlers.DeleteReservation(db))

		admin.DELETE("/ratings/:id", handlers.AdminDeleteRating(db))

		admin.GET("/users", handlers.AdminListUsers(db))
		admin.PUT("/users/:uid/role", handlers.UpdateUserRole(db))

		admin.GET("/invites", handlers.ListInvites(db))
		admin.POST("/invites", handlers.CreateInvite(db, rt.invites))
		admin.DELETE("/invites/:email", handlers.DeleteInvite(db))

		admin.GET("/settings/:key", handlers.AdminGetSetting(db))
		admin.PUT("/settings/:key", handlers.AdminPutSetting(db))

		admin.GET("/coupons", handlers.AdminListCoupons(db))
		admin.POST("/coupons", handlers.CreateCoupon(db))
		admin.PUT("/coupons/:id", handlers.UpdateCoupon(db))
		admin.DELETE("/coupons/:id", handlers.DeleteCoupon(db))

		admin.POST("/uploads", handlers.UploadImages(rt.images, env.MaxUploadImages))
		admin.POST("/remote-config/colors", handlers.SetColorConfig(rt.colors))
	}

	r.NoRoute(handlers.StaticSite(env.StaticDir))
	return r
}
