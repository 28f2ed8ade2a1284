package nestor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/junioryono/nestor"
)

type Greeter struct {
	Greeting string
}

func NewGreeter(greeting string) *Greeter {
	return &Greeter{Greeting: greeting}
}

func (g *Greeter) Greet(name string) string {
	return g.Greeting + ", " + name
}

type UsersService struct {
	Greeter *Greeter
}

func NewUsersService(g *Greeter) *UsersService {
	return &UsersService{Greeter: g}
}

// Example demonstrates a module exporting a provider to the root module.
func Example() {
	greeterModule := nestor.NewModule("GreeterModule",
		nestor.Providers(
			nestor.Value("GREETING", "Hello"),
			nestor.Class(NewGreeter, nestor.Inject("GREETING")),
		),
		nestor.Exports(nestor.TokenOf[*Greeter]()),
	)

	appModule := nestor.NewModule("AppModule",
		nestor.Imports(greeterModule),
		nestor.Providers(NewUsersService),
	)

	ctx := context.Background()
	app, err := nestor.New(ctx, appModule)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(ctx)

	users, err := nestor.Get[*UsersService](app)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(users.Greeter.Greet("Ada"))
	// Output: Hello, Ada
}

type RequestID struct {
	Value string
}

// ExampleApplication_Resolve demonstrates request-scoped providers.
func ExampleApplication_Resolve() {
	var next int
	appModule := nestor.NewModule("AppModule",
		nestor.Providers(nestor.Class(func() *RequestID {
			next++
			return &RequestID{Value: fmt.Sprintf("req-%d", next)}
		}, nestor.WithScope(nestor.Request))),
	)

	ctx := context.Background()
	app, err := nestor.New(ctx, appModule)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(ctx)

	first := nestor.WithContextIDValue(ctx, nestor.NewContextID())
	second := nestor.WithContextIDValue(ctx, nestor.NewContextID())

	a1 := nestor.MustResolve[*RequestID](first, app)
	a2 := nestor.MustResolve[*RequestID](first, app)
	b := nestor.MustResolve[*RequestID](second, app)

	fmt.Println(a1.Value, a1 == a2)
	fmt.Println(b.Value)
	// Output:
	// req-1 true
	// req-2
}

type Chicken struct {
	Egg *Egg `inject:"" forward:"true"`
}

type Egg struct {
	Chicken *Chicken `inject:"" forward:"true"`
}

// Example_circular demonstrates a circular dependency broken with forward references.
func Example_circular() {
	appModule := nestor.NewModule("AppModule",
		nestor.Providers(
			func() *Chicken { return &Chicken{} },
			func() *Egg { return &Egg{} },
		),
	)

	ctx := context.Background()
	app, err := nestor.New(ctx, appModule)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(ctx)

	chicken := nestor.MustGet[*Chicken](app)
	fmt.Println(chicken.Egg.Chicken == chicken)
	// Output: true
}

type Server struct{}

func (s *Server) OnModuleInit(context.Context) error {
	fmt.Println("init")
	return nil
}

func (s *Server) OnApplicationBootstrap(context.Context) error {
	fmt.Println("bootstrap")
	return nil
}

func (s *Server) OnApplicationShutdown(_ context.Context, signal string) error {
	fmt.Println("shutdown", signal)
	return nil
}

func (s *Server) Close() error {
	fmt.Println("close")
	return nil
}

// ExampleApplication_Shutdown demonstrates lifecycle hooks and disposal.
func ExampleApplication_Shutdown() {
	appModule := nestor.NewModule("AppModule",
		nestor.Providers(func() *Server { return &Server{} }),
	)

	ctx := context.Background()
	app, err := nestor.New(ctx, appModule)
	if err != nil {
		log.Fatal(err)
	}

	if err := app.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := app.Shutdown(ctx, "SIGTERM"); err != nil {
		log.Fatal(err)
	}
	// Output:
	// init
	// bootstrap
	// shutdown SIGTERM
	// close
}

// ExampleDynamicModule demonstrates a configurable module.
func ExampleDynamicModule() {
	greeterModule := nestor.NewModule("GreeterModule")
	forRoot := func(greeting string) *nestor.DynamicModule {
		return &nestor.DynamicModule{
			Module: greeterModule,
			Providers: []any{
				nestor.Value("GREETING", greeting),
				nestor.Class(NewGreeter, nestor.Inject("GREETING")),
			},
			Exports: []nestor.Token{nestor.TokenOf[*Greeter]()},
			Global:  true,
		}
	}

	appModule := nestor.NewModule("AppModule",
		nestor.Imports(forRoot("Bonjour")),
		nestor.Providers(NewUsersService),
	)

	ctx := context.Background()
	app, err := nestor.New(ctx, appModule)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(ctx)

	fmt.Println(nestor.MustGet[*UsersService](app).Greeter.Greet("Grace"))
	// Output: Bonjour, Grace
}
