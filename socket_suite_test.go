package sockring_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-sockring/sockring"
)

var _ = Describe("Socket lifecycle", func() {
	var rt *sockring.Runtime

	BeforeEach(func() {
		rt = sockring.NewRuntime()
		Expect(rt.Init(sockring.Config{MaxSockets: 16})).To(Succeed())
	})

	AfterEach(func() {
		rt.Finalize()
	})

	// spec.md S8 scenario 1: create + close.
	It("creates and destroys a socket", func() {
		h := rt.CreateTCP(sockring.FamilyIPv4)
		Expect(rt.IsSocket(h)).To(BeTrue())

		Expect(rt.Destroy(h)).To(BeTrue())
		Expect(rt.IsSocket(h)).To(BeFalse())
	})

	// spec.md S8 invariant 1: operations on a destroyed handle are
	// safe no-ops returning failure sentinels, and a second Destroy is
	// a no-op.
	It("is safe to operate on and double-destroy a dead handle", func() {
		h := rt.CreateTCP(sockring.FamilyIPv4)
		Expect(rt.Destroy(h)).To(BeTrue())

		Expect(rt.Destroy(h)).To(BeFalse())
		Expect(rt.Bind(h, "127.0.0.1:0")).To(BeFalse())
		Expect(rt.AddressLocal(h)).To(BeNil())
	})

	// spec.md S8 invariant 2: a just-created socket starts
	// NotConnected with no addresses bound.
	It("starts NotConnected with no addresses", func() {
		h := rt.CreateTCP(sockring.FamilyIPv4)
		defer rt.Destroy(h)

		Expect(rt.State(h)).To(Equal(sockring.NotConnected))
		Expect(rt.AddressLocal(h)).To(BeNil())
		Expect(rt.AddressRemote(h)).To(BeNil())
	})

	// spec.md S8 scenario 2: blocking toggle, and invariant 8: a flag
	// read reflects the last write even before an fd-level operation.
	It("toggles the blocking flag", func() {
		h := rt.CreateTCP(sockring.FamilyIPv4)
		defer rt.Destroy(h)

		Expect(rt.SetBlocking(h, false)).To(BeTrue())
		Expect(rt.Blocking(h)).To(BeFalse())

		Expect(rt.SetBlocking(h, true)).To(BeTrue())
		Expect(rt.Blocking(h)).To(BeTrue())
	})

	// spec.md S8 scenario 3: bind across a port range, verifying
	// invariant 3 (address_local set, address_remote empty, state
	// unchanged).
	It("binds to an available IPv4 port", func() {
		h := rt.CreateTCP(sockring.FamilyIPv4)
		defer rt.Destroy(h)

		Expect(rt.AddressLocal(h)).To(BeNil())

		bound := false
		for port := 31890; port <= 32890; port++ {
			if rt.Bind(h, fmt.Sprintf("0.0.0.0:%d", port)) {
				bound = true
				break
			}
		}
		Expect(bound).To(BeTrue(), "expected at least one free port in the scan range")

		Expect(rt.AddressLocal(h)).NotTo(BeNil())
		Expect(rt.AddressRemote(h)).To(BeNil())
		Expect(rt.State(h)).To(Equal(sockring.NotConnected))
	})

	// spec.md S8 scenario 4: same bind scan over IPv6, gated on local
	// IPv6 support the way the original gates it on
	// network_supports_ipv6().
	It("binds to an available IPv6 port when IPv6 is supported", func() {
		if !rt.SupportsIPv6() {
			Skip("host does not support IPv6")
		}
		h := rt.CreateTCP(sockring.FamilyIPv6)
		defer rt.Destroy(h)

		bound := false
		for port := 31890; port <= 32890; port++ {
			if rt.Bind(h, fmt.Sprintf("[::]:%d", port)) {
				bound = true
				break
			}
		}
		Expect(bound).To(BeTrue())
		Expect(rt.AddressLocal(h)).NotTo(BeNil())
	})

	// spec.md S8 scenario 5 and 6: listen/accept/connect loopback
	// echo, then graceful remote close posting exactly one Hangup.
	It("accepts a loopback connection, echoes data, and posts one Hangup on close", func() {
		listener := rt.CreateTCP(sockring.FamilyIPv4)
		defer rt.Destroy(listener)

		var port int
		for p := 31890; p <= 32890; p++ {
			if rt.Bind(listener, fmt.Sprintf("127.0.0.1:%d", p)) {
				port = p
				break
			}
		}
		Expect(port).NotTo(BeZero())
		Expect(rt.Listen(listener)).To(BeTrue())
		Expect(rt.State(listener)).To(Equal(sockring.Listening))

		client := rt.CreateTCP(sockring.FamilyIPv4)
		defer rt.Destroy(client)

		acceptedCh := make(chan sockring.Handle, 1)
		go func() {
			acceptedCh <- rt.Accept(listener, 1000)
		}()

		Expect(rt.Connect(client, fmt.Sprintf("127.0.0.1:%d", port), 1000)).To(BeTrue())

		var accepted sockring.Handle
		Eventually(acceptedCh).Should(Receive(&accepted))
		Expect(accepted).NotTo(BeZero())
		Expect(rt.State(accepted)).To(Equal(sockring.Connected))

		clientStream := rt.Stream(client)
		Expect(clientStream).NotTo(BeNil())
		n, err := clientStream.Write([]byte("ABC"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))

		serverStream := rt.Stream(accepted)
		buf := make([]byte, 3)
		Eventually(func() (int, error) {
			return serverStream.Read(buf)
		}).Should(Equal(3))
		Expect(string(buf)).To(Equal("ABC"))

		// spec.md S8 scenario 6: destroying the accepted (server-side)
		// handle must surface as end-of-stream on the *other* side —
		// the client — once its in-buffer drains. The zero-length recv
		// that discovers the orderly close only happens on an actual
		// read attempt (BufferRead drives one opportunistically), not
		// from Eos alone.
		rt.Destroy(accepted)

		Eventually(func() bool {
			clientStream.BufferRead()
			return clientStream.Eos()
		}).Should(BeTrue())

		var hangups int
		for {
			select {
			case ev := <-rt.Events():
				if ev.Kind == sockring.EventHangup {
					hangups++
				}
			default:
				goto done
			}
		}
	done:
		Expect(hangups).To(Equal(1))
	})
})

var _ = Describe("Module lifecycle", func() {
	It("probes local address family support idempotently", func() {
		rt := sockring.NewRuntime()
		Expect(rt.Init(sockring.Config{MaxSockets: 4})).To(Succeed())
		Expect(rt.IsInitialized()).To(BeTrue())

		// Re-Init must be idempotent (network_initialize's own
		// re-entrancy contract) rather than erroring on an
		// already-initialized Runtime.
		Expect(rt.Init(sockring.Config{MaxSockets: 8})).To(Succeed())
		Expect(rt.Config().MaxSockets).To(Equal(8))

		rt.Finalize()
		Expect(rt.IsInitialized()).To(BeFalse())
	})

	It("rejects a non-positive MaxSockets", func() {
		rt := sockring.NewRuntime()
		Expect(rt.Init(sockring.Config{MaxSockets: 0})).To(HaveOccurred())
	})
})
