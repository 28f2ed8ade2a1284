// Package nestor is a module-based dependency injection runtime for Go.
// Applications are organized as a graph of modules. Each module declares the
// providers it owns, the modules it imports and the tokens it exports, and a
// provider can only depend on tokens visible from its own module.
//
// # Overview
//
// nestor resolves a module graph in three phases:
//   - Scanning walks the imports from the root module and registers every module once
//   - Loading constructs the static instances of every module concurrently
//   - Lifecycle hooks run on Init and Close
//
// # Basic Usage
//
// Declare modules, create the application and retrieve instances:
//
//	var DatabaseModule = nestor.NewModule("DatabaseModule",
//	    nestor.Providers(NewDatabase),
//	    nestor.Exports(nestor.TokenOf[*Database]()),
//	)
//
//	var UsersModule = nestor.NewModule("UsersModule",
//	    nestor.Imports(DatabaseModule),
//	    nestor.Providers(NewUsersService),
//	)
//
//	app, err := nestor.New(ctx, UsersModule)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close(ctx)
//
//	users, err := nestor.Get[*UsersService](app)
//
// # Tokens
//
// A provider is registered under a token. Class providers default to the
// result type of their constructor. Any comparable value can be a token:
//
//	nestor.Value("CONFIG", cfg)
//	nestor.Factory("CONNECTION", connect, nestor.Inject("CONFIG"))
//	nestor.Existing("ALIAS", nestor.TokenOf[*Database]())
//
// # Scopes
//
//   - Singleton: one instance for the whole application
//   - Request: one instance per context id, see Application.Resolve
//   - Transient: one instance per consumer
//
// A provider that depends on a request-scoped provider is request scoped
// itself. Such providers are not constructed at startup and are retrieved with
// Resolve instead of Get.
//
// # Circular Dependencies
//
// Two providers may depend on each other when one side uses ForwardRef and
// both constructors return pointers to structs. The consumer receives a
// pointer that is filled in once the other side has been constructed:
//
//	nestor.Class(NewA, nestor.InjectAt(0, nestor.ForwardRef(func() nestor.Token {
//	    return nestor.TokenOf[*B]()
//	})))
//
// A cycle without a forward reference fails with CircularDependencyError.
//
// # Field Injection
//
// Exported fields of a constructed struct tagged with inject are set after the
// constructor returns:
//
//	type Handler struct {
//	    Users  *UsersService `inject:""`
//	    Config string        `inject:"CONFIG" optional:"true"`
//	}
//
// # Lifecycle
//
// Instances may implement OnModuleInit, OnApplicationBootstrap,
// OnModuleDestroy, BeforeApplicationShutdown and OnApplicationShutdown.
// Instances implementing Disposable are closed in reverse creation order when
// the application closes.
package nestor
