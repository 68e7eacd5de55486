package fakeapi

const (
	RouteLogin    = "/api/v1/auth/login"
	RouteRegister = "/api/v1/auth/register"
	RouteRefresh  = "/api/v1/auth/refresh"
	RouteLogout   = "/api/v1/auth/logout"
	RouteMe       = "/api/v1/users/me"

	RouteBooks      = "/api/v1/books"
	RouteBook       = "/api/v1/books/{id}"
	RouteCategories = "/api/v1/categories"
	RouteCategory   = "/api/v1/categories/{id}"
	RouteWishlist   = "/api/v1/users/me/wishlist"
	RouteWishlistID = "/api/v1/users/me/wishlist/{book_id}"

	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteOAuth2Token           = "/oauth2/token"
	RouteUserInfo              = "/oauth2/userinfo"
	RouteOAuth2Revoke          = "/oauth2/revoke"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.Login(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.Register(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.Refresh(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.Logout(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.Me(), s.APIMiddleware(s.RequireAuth)...))

	// CATALOG
	s.RegisterRouteFunc("GET "+RouteBooks, ChainMiddleware(s.ListBooks(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteBook, ChainMiddleware(s.GetBook(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteBooks, ChainMiddleware(s.CreateBook(), s.APIMiddleware(s.RequireAuth, s.RequireAdmin)...))
	s.RegisterRouteFunc("PUT "+RouteBook, ChainMiddleware(s.UpdateBook(), s.APIMiddleware(s.RequireAuth, s.RequireAdmin)...))
	s.RegisterRouteFunc("DELETE "+RouteBook, ChainMiddleware(s.DeleteBook(), s.APIMiddleware(s.RequireAuth, s.RequireAdmin)...))
	s.RegisterRouteFunc("GET "+RouteCategories, ChainMiddleware(s.ListCategories(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCategory, ChainMiddleware(s.GetCategory(), s.APIMiddleware()...))

	// WISHLIST
	s.RegisterRouteFunc("GET "+RouteWishlist, ChainMiddleware(s.ListWishlist(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("POST "+RouteWishlist, ChainMiddleware(s.AddWishlist(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("DELETE "+RouteWishlistID, ChainMiddleware(s.RemoveWishlist(), s.APIMiddleware(s.RequireAuth)...))

	// OAuth2 / OIDC
	s.RegisterRouteFunc("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteFunc("POST "+RouteOAuth2Revoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))
}
