package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	kubefake "k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/otterscale/fluxstrap/internal/core"
)

// resettableMapper wraps a static mapper and counts resets.
type resettableMapper struct {
	meta.RESTMapper
	resets int
}

func (m *resettableMapper) Reset() { m.resets++ }

func newMapper() *resettableMapper {
	m := meta.NewDefaultRESTMapper(nil)
	m.Add(schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}, meta.RESTScopeRoot)
	m.Add(schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}, meta.RESTScopeNamespace)
	m.Add(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, meta.RESTScopeNamespace)
	m.Add(schema.GroupVersionKind{Group: "apiextensions.k8s.io", Version: "v1", Kind: "CustomResourceDefinition"}, meta.RESTScopeRoot)
	return &resettableMapper{RESTMapper: m}
}

// patchRecord captures a single Server-Side Apply request.
type patchRecord struct {
	resource  string
	namespace string
	name      string
	patchType types.PatchType
	body      map[string]any
}

type fixture struct {
	dynamic *dynamicfake.FakeDynamicClient
	kube    *kubefake.Clientset
	mapper  *resettableMapper
	reader  *sdkmetric.ManualReader

	mu      sync.Mutex
	patches []patchRecord
}

func newFixture() *fixture {
	f := &fixture{
		dynamic: dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()),
		kube:    kubefake.NewClientset(),
		mapper:  newMapper(),
		reader:  sdkmetric.NewManualReader(),
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(f.reader)))

	f.dynamic.PrependReactor("patch", "*", func(action clienttesting.Action) (bool, runtime.Object, error) {
		pa := action.(clienttesting.PatchAction)
		var body map[string]any
		if err := json.Unmarshal(pa.GetPatch(), &body); err != nil {
			return true, nil, err
		}
		f.mu.Lock()
		f.patches = append(f.patches, patchRecord{
			resource:  pa.GetResource().Resource,
			namespace: pa.GetNamespace(),
			name:      pa.GetName(),
			patchType: pa.GetPatchType(),
			body:      body,
		})
		f.mu.Unlock()
		return true, &unstructured.Unstructured{Object: body}, nil
	})
	return f
}

func (f *fixture) establishCRDs(established bool) {
	f.dynamic.PrependReactor("get", "customresourcedefinitions", func(action clienttesting.Action) (bool, runtime.Object, error) {
		name := action.(clienttesting.GetAction).GetName()
		status := "False"
		if established {
			status = "True"
		}
		crd := &unstructured.Unstructured{}
		crd.SetAPIVersion("apiextensions.k8s.io/v1")
		crd.SetKind("CustomResourceDefinition")
		crd.SetName(name)
		_ = unstructured.SetNestedSlice(crd.Object, []any{
			map[string]any{"type": "NamesAccepted", "status": "True"},
			map[string]any{"type": "Established", "status": status},
		}, "status", "conditions")
		return true, crd, nil
	})
}

func (f *fixture) applier(maxRequestBytes int) *Applier {
	a, err := newApplier("fluxstrap-test", maxRequestBytes, 200*time.Millisecond, func() (*clients, error) {
		return &clients{dynamic: f.dynamic, kube: f.kube, mapper: f.mapper}, nil
	})
	Expect(err).NotTo(HaveOccurred())
	a.pollInterval = 10 * time.Millisecond
	return a
}

func (f *fixture) unitCount(result string) int64 {
	var rm metricdata.ResourceMetrics
	Expect(f.reader.Collect(context.Background(), &rm)).To(Succeed())
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "fluxstrap_apply_units" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			Expect(ok).To(BeTrue())
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("result"); ok && v.AsString() == result {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func newObject(apiVersion, kind, namespace, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion(apiVersion)
	obj.SetKind(kind)
	obj.SetNamespace(namespace)
	obj.SetName(name)
	return obj
}

var _ = Describe("Applier", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
	})

	Describe("Apply", func() {
		It("submits a server-side apply patch with the field manager", func() {
			a := f.applier(0)
			obj := newObject("apps/v1", "Deployment", "flux-system", "source-controller")

			Expect(a.Apply(ctx, "flux", obj)).To(Succeed())

			Expect(f.patches).To(HaveLen(1))
			p := f.patches[0]
			Expect(p.resource).To(Equal("deployments"))
			Expect(p.namespace).To(Equal("flux-system"))
			Expect(p.name).To(Equal("source-controller"))
			Expect(p.patchType).To(Equal(types.ApplyPatchType))
			Expect(p.body["kind"]).To(Equal("Deployment"))

			Expect(f.unitCount("success")).To(Equal(int64(1)))
		})

		It("targets cluster-scoped resources without a namespace", func() {
			Expect(f.applier(0).Apply(ctx, "flux", newObject("v1", "Namespace", "", "flux-system"))).To(Succeed())
			Expect(f.patches).To(HaveLen(1))
			Expect(f.patches[0].resource).To(Equal("namespaces"))
			Expect(f.patches[0].namespace).To(BeEmpty())
		})

		It("defaults namespaced objects without a namespace", func() {
			Expect(f.applier(0).Apply(ctx, "companion", newObject("v1", "ConfigMap", "", "settings"))).To(Succeed())
			Expect(f.patches[0].namespace).To(Equal(metav1.NamespaceDefault))
		})

		It("rejects objects above the request ceiling without contacting the cluster", func() {
			obj := newObject("v1", "ConfigMap", "default", "big")
			Expect(unstructured.SetNestedField(obj.Object, strings.Repeat("x", 4096), "data", "blob")).To(Succeed())

			err := f.applier(1024).Apply(ctx, "flux", obj)

			var tooLarge *core.ErrPayloadTooLarge
			Expect(errors.As(err, &tooLarge)).To(BeTrue())
			Expect(tooLarge.Limit).To(Equal(1024))
			Expect(tooLarge.Size).To(BeNumerically(">", 4096))
			Expect(f.dynamic.Actions()).To(BeEmpty())
			Expect(f.unitCount("failure")).To(Equal(int64(1)))
		})

		It("fails for kinds the cluster does not serve", func() {
			err := f.applier(0).Apply(ctx, "bootstrap", newObject("kustomize.toolkit.fluxcd.io/v1", "Kustomization", "flux-system", "flux-system"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("map GVK"))
			Expect(f.patches).To(BeEmpty())
		})

		It("surfaces API rejections", func() {
			f.dynamic.PrependReactor("patch", "configmaps", func(clienttesting.Action) (bool, runtime.Object, error) {
				return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "configmaps"}, "x", errors.New("denied"))
			})

			err := f.applier(0).Apply(ctx, "flux", newObject("v1", "ConfigMap", "default", "x"))
			Expect(apierrors.IsForbidden(err)).To(BeTrue())
		})

		It("propagates client construction failures", func() {
			a, err := newApplier("fluxstrap-test", 0, time.Second, func() (*clients, error) {
				return nil, errors.New("no kubeconfig")
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Apply(ctx, "flux", newObject("v1", "Namespace", "", "a"))).To(MatchError("no kubeconfig"))
		})
	})

	Describe("CRDs", func() {
		var crd *unstructured.Unstructured

		BeforeEach(func() {
			crd = newObject("apiextensions.k8s.io/v1", "CustomResourceDefinition", "", "targetgroupbindings.elbv2.k8s.aws")
		})

		It("waits until the CRD is established and resets the mapper", func() {
			f.establishCRDs(true)
			Expect(f.applier(0).Apply(ctx, "companion", crd)).To(Succeed())
			Expect(f.mapper.resets).To(Equal(1))
		})

		It("times out when the CRD never becomes established", func() {
			f.establishCRDs(false)
			err := f.applier(0).Apply(ctx, "companion", crd)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("did not become established"))
			Expect(f.mapper.resets).To(BeZero())
		})

		It("gives up immediately on permanent errors", func() {
			f.dynamic.PrependReactor("get", "customresourcedefinitions", func(clienttesting.Action) (bool, runtime.Object, error) {
				return true, nil, apierrors.NewForbidden(crdGVR.GroupResource(), "x", errors.New("denied"))
			})
			a := f.applier(0)
			a.crdTimeout = time.Minute

			start := time.Now()
			err := a.Apply(ctx, "companion", crd)
			Expect(apierrors.IsForbidden(err)).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically("<", 10*time.Second))
		})
	})

	Describe("EnsureNamespace", func() {
		It("creates a missing namespace", func() {
			Expect(f.applier(0).EnsureNamespace(ctx, "kube-system")).To(Succeed())

			ns, err := f.kube.CoreV1().Namespaces().Get(ctx, "kube-system", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ns.Name).To(Equal("kube-system"))
		})

		It("is a no-op when the namespace exists", func() {
			a := f.applier(0)
			Expect(a.EnsureNamespace(ctx, "kube-system")).To(Succeed())
			Expect(a.EnsureNamespace(ctx, "kube-system")).To(Succeed())

			creates := 0
			for _, action := range f.kube.Actions() {
				if action.GetVerb() == "create" {
					creates++
				}
			}
			Expect(creates).To(Equal(1))
		})

		It("reports lookup failures", func() {
			f.kube.PrependReactor("get", "namespaces", func(clienttesting.Action) (bool, runtime.Object, error) {
				return true, nil, apierrors.NewUnauthorized("expired token")
			})
			err := f.applier(0).EnsureNamespace(ctx, "kube-system")
			Expect(apierrors.IsUnauthorized(err)).To(BeTrue())
		})
	})
})

var _ = Describe("isTransient", func() {
	DescribeTable("classifies API errors",
		func(err error, want bool) {
			Expect(isTransient(err)).To(Equal(want))
		},
		Entry("not found", apierrors.NewNotFound(crdGVR.GroupResource(), "x"), true),
		Entry("server timeout", apierrors.NewServerTimeout(crdGVR.GroupResource(), "get", 1), true),
		Entry("plain error", errors.New("connection refused"), true),
		Entry("forbidden", apierrors.NewForbidden(crdGVR.GroupResource(), "x", errors.New("no")), false),
		Entry("unauthorized", apierrors.NewUnauthorized("no"), false),
		Entry("bad request", apierrors.NewBadRequest("no"), false),
	)
})
