package nestor

import "context"

// Disposable is implemented by instances holding resources that must be
// released when the application closes. Instances are disposed after the
// shutdown hooks ran, in reverse creation order.
//
// Example:
//
//	type Database struct {
//	    conn *sql.DB
//	}
//
//	func (d *Database) Close() error {
//	    return d.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware form of Disposable. The context
// is the one passed to Application.Close.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}
